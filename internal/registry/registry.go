package registry

import (
	"context"
	"errors"
	"time"

	"github.com/zsiec/cloudstream/internal/ply"
	"github.com/zsiec/cloudstream/internal/stream"
)

// DefaultHistory is the number of frames kept per session.
const DefaultHistory = 100

var (
	// ErrNotFound is returned when a session or frame is not in the registry.
	ErrNotFound = errors.New("not found")
)

// Entry records one published frame.
type Entry struct {
	SessionID   string       `json:"session_id"`
	Name        string       `json:"name"`
	Index       uint64       `json:"frame_index"`
	Slot        int          `json:"slot"`
	Points      int          `json:"points"`
	Min         ply.Position `json:"min"`
	Max         ply.Position `json:"max"`
	PublishedAt time.Time    `json:"published_at"`
}

// EntryFor describes snap as published in session sessionID.
func EntryFor(sessionID string, snap *stream.Snapshot) Entry {
	lo, hi := snap.Cloud.Bounds()
	return Entry{
		SessionID:   sessionID,
		Name:        snap.Name,
		Index:       snap.Index,
		Slot:        snap.Slot,
		Points:      snap.Len(),
		Min:         lo,
		Max:         hi,
		PublishedAt: snap.PublishedAt,
	}
}

// Registry keeps sessions and the recent frames they published, so other
// processes (and restarts) can see what was streamed.
type Registry interface {
	// Record appends a published frame to its session's history.
	Record(ctx context.Context, e Entry) error

	// Latest returns the most recent frame of a session.
	Latest(ctx context.Context, sessionID string) (*Entry, error)

	// History returns up to limit frames, newest first.
	History(ctx context.Context, sessionID string, limit int) ([]Entry, error)

	// SaveSession stores the current state of a session.
	SaveSession(ctx context.Context, s stream.Session) error

	// GetSession loads a stored session.
	GetSession(ctx context.Context, id string) (*stream.Session, error)

	// Sessions lists every stored session.
	Sessions(ctx context.Context) ([]stream.Session, error)

	// Close closes any resources held by the registry
	Close() error
}

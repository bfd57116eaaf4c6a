package stream

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the controller's position in one frame cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateParsing
	StatePublished
	StateFailed
)

var stateNames = [...]string{"idle", "fetching", "parsing", "published", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Session is the state of one playback run. It is a value: Tick takes a
// Session and returns the next one, so callers own every transition.
type Session struct {
	ID         string    `json:"id"`
	FrameIndex uint64    `json:"frame_index"`
	Width      int       `json:"rotation_width"`
	State      State     `json:"state"`
	Halted     bool      `json:"halted"`
	LastFrame  string    `json:"last_frame,omitempty"`
	LastSlot   int       `json:"last_slot"`
	LastError  string    `json:"last_error,omitempty"`
	Published  uint64    `json:"published"`
	StartedAt  time.Time `json:"started_at"`
	HaltedAt   time.Time `json:"halted_at"`
}

// NewSession starts a session at frame start rotating over width slots.
func NewSession(start uint64, width int) (Session, error) {
	if width < 1 {
		return Session{}, fmt.Errorf("rotation width must be at least 1, got %d", width)
	}
	return Session{
		ID:         uuid.NewString(),
		FrameIndex: start,
		Width:      width,
		State:      StateIdle,
		LastSlot:   -1,
		StartedAt:  time.Now(),
	}, nil
}

// Slot is the local slot the next cycle will write.
func (s Session) Slot() int {
	return SlotFor(s.FrameIndex, s.Width)
}

// Elapsed is the session's run time, up to the halt if it has halted.
func (s Session) Elapsed() time.Duration {
	if s.Halted && !s.HaltedAt.IsZero() {
		return s.HaltedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// SlotFor maps a frame index onto a rotation of width slots.
func SlotFor(index uint64, width int) int {
	return int(index % uint64(width))
}

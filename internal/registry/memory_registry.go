package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zsiec/cloudstream/internal/stream"
)

// MemoryRegistry is the in-process Registry used when Redis is disabled.
type MemoryRegistry struct {
	mu       sync.RWMutex
	history  int
	sessions map[string]stream.Session
	frames   map[string][]Entry // newest last
}

func NewMemoryRegistry(history int) *MemoryRegistry {
	if history <= 0 {
		history = DefaultHistory
	}
	return &MemoryRegistry{
		history:  history,
		sessions: make(map[string]stream.Session),
		frames:   make(map[string][]Entry),
	}
}

func (m *MemoryRegistry) Record(_ context.Context, e Entry) error {
	if e.SessionID == "" {
		return fmt.Errorf("entry has no session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.frames[e.SessionID], e)
	if over := len(list) - m.history; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	m.frames[e.SessionID] = list
	return nil
}

func (m *MemoryRegistry) Latest(_ context.Context, sessionID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.frames[sessionID]
	if len(list) == 0 {
		return nil, fmt.Errorf("frames for session %s: %w", sessionID, ErrNotFound)
	}
	e := list[len(list)-1]
	return &e, nil
}

func (m *MemoryRegistry) History(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.frames[sessionID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Entry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *MemoryRegistry) SaveSession(_ context.Context, s stream.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryRegistry) GetSession(_ context.Context, id string) (*stream.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryRegistry) Sessions(_ context.Context) ([]stream.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]stream.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryRegistry) Close() error { return nil }

package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/cloudstream/internal/stream"
)

// RedisChecker checks Redis connectivity.
type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string { return "redis" }

// Redis backs only the frame history, so an outage degrades the service
// rather than taking it down.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &DegradedError{Reason: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return nil
}

// WriteChecker reports whether a storage location accepts writes.
type WriteChecker interface {
	CheckWritable() error
	Dir() string
}

// SlotDirChecker verifies that fetched frames can be persisted.
type SlotDirChecker struct {
	store WriteChecker
}

func NewSlotDirChecker(store WriteChecker) *SlotDirChecker {
	return &SlotDirChecker{store: store}
}

func (s *SlotDirChecker) Name() string { return "slot_dir" }

func (s *SlotDirChecker) Check(context.Context) error {
	if err := s.store.CheckWritable(); err != nil {
		return fmt.Errorf("slot directory %s not writable: %w", s.store.Dir(), err)
	}
	return nil
}

// SessionChecker reports a halted streaming session.
type SessionChecker struct {
	session func() stream.Session
}

// NewSessionChecker watches the session returned by current.
func NewSessionChecker(current func() stream.Session) *SessionChecker {
	return &SessionChecker{session: current}
}

func (s *SessionChecker) Name() string { return "session" }

func (s *SessionChecker) Check(context.Context) error {
	sess := s.session()
	if sess.Halted {
		return fmt.Errorf("session %s halted at frame %d: %s", sess.ID, sess.FrameIndex, sess.LastError)
	}
	return nil
}

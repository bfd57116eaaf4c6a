package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/stream"
)

// recordScript pushes a frame, trims the list to the history size and
// refreshes its TTL in one step.
var recordScript = redis.NewScript(`
	local key = KEYS[1]
	local data = ARGV[1]
	local keep = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])
	redis.call('LPUSH', key, data)
	redis.call('LTRIM', key, 0, keep - 1)
	redis.call('PEXPIRE', key, ttl)
	return redis.call('LLEN', key)
`)

// sessionsScript returns every live session and drops expired IDs from
// the index set.
var sessionsScript = redis.NewScript(`
	local index_key = KEYS[1]
	local prefix = ARGV[1]
	local ids = redis.call('SMEMBERS', index_key)
	local result = {}
	for _, id in ipairs(ids) do
		local data = redis.call('GET', prefix .. id)
		if data then
			table.insert(result, data)
		else
			redis.call('SREM', index_key, id)
		end
	end
	return result
`)

// RedisRegistry implements Registry on Redis. Sessions are JSON strings,
// frame history is a capped list per session; both expire after ttl
// without updates.
type RedisRegistry struct {
	client  redis.UniversalClient
	logger  logger.Logger
	prefix  string
	ttl     time.Duration
	history int
}

func NewRedisRegistry(client redis.UniversalClient, log logger.Logger, ttl time.Duration, history int) *RedisRegistry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if history <= 0 {
		history = DefaultHistory
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RedisRegistry{
		client:  client,
		logger:  log.WithField("component", "redis_registry"),
		prefix:  "cloudstream:",
		ttl:     ttl,
		history: history,
	}
}

func (r *RedisRegistry) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *RedisRegistry) framesKey(id string) string  { return r.prefix + "frames:" + id }
func (r *RedisRegistry) indexKey() string            { return r.prefix + "sessions" }

func (r *RedisRegistry) Record(ctx context.Context, e Entry) error {
	if e.SessionID == "" {
		return fmt.Errorf("entry has no session id")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	n, err := recordScript.Run(ctx, r.client,
		[]string{r.framesKey(e.SessionID)},
		data, r.history, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to record frame: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"session_id":  e.SessionID,
		"frame":       e.Name,
		"history_len": n,
	}).Debug("Frame recorded")
	return nil
}

func (r *RedisRegistry) Latest(ctx context.Context, sessionID string) (*Entry, error) {
	data, err := r.client.LIndex(ctx, r.framesKey(sessionID), 0).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("frames for session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest frame: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &e, nil
}

func (r *RedisRegistry) History(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > r.history {
		limit = r.history
	}

	raw, err := r.client.LRange(ctx, r.framesKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			r.logger.WithError(err).Warn("Skipping unreadable history entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisRegistry) SaveSession(ctx context.Context, s stream.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.ID), data, r.ttl)
		pipe.SAdd(ctx, r.indexKey(), s.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) GetSession(ctx context.Context, id string) (*stream.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s stream.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisRegistry) Sessions(ctx context.Context) ([]stream.Session, error) {
	res, err := sessionsScript.Run(ctx, r.client, []string{r.indexKey()}, r.prefix+"session:").StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]stream.Session, 0, len(res))
	for _, item := range res {
		var s stream.Session
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			r.logger.WithError(err).Warn("Skipping unreadable session")
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Close closes the Redis client connection
func (r *RedisRegistry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Frame pipeline log categories. Each one fires once per cycle at tick rate,
// so they are sampled; anything not listed here is always logged.
const (
	CategoryFrameFetch   = "frame_fetch"
	CategoryFrameParse   = "frame_parse"
	CategoryFramePublish = "frame_publish"
	CategorySlotWrite    = "slot_write"
	CategoryWebSocket    = "websocket"
)

// SampledLogger rate-limits high-frequency log categories.
type SampledLogger struct {
	base     Logger
	mu       *sync.RWMutex
	samplers map[string]*sampler
}

type sampler struct {
	limiter *rate.Limiter
	total   atomic.Int64
	logged  atomic.Int64
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Logged  int64   `json:"logged"`
	Dropped int64   `json:"dropped"`
	Rate    float64 `json:"rate"`
}

// NewSampledLogger creates a sampled logger with no categories configured.
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		mu:       &sync.RWMutex{},
		samplers: make(map[string]*sampler),
	}
}

// WithSampler lets through at most burst messages for category, refilled
// one per interval.
func (s *SampledLogger) WithSampler(category string, interval time.Duration, burst int) *SampledLogger {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samplers[category] = &sampler{limiter: rate.NewLimiter(rate.Every(interval), burst)}
	return s
}

// NewFrameLogger creates a sampled logger tuned for the frame cycle.
func NewFrameLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryFrameFetch, time.Second, 3).
		WithSampler(CategoryFrameParse, time.Second, 3).
		WithSampler(CategoryFramePublish, time.Second, 3).
		WithSampler(CategorySlotWrite, 5*time.Second, 2).
		WithSampler(CategoryWebSocket, 500*time.Millisecond, 5)
}

func (s *SampledLogger) allow(category string) (*sampler, bool) {
	s.mu.RLock()
	sm, ok := s.samplers[category]
	s.mu.RUnlock()
	if !ok {
		return nil, true
	}

	sm.total.Add(1)
	if !sm.limiter.Allow() {
		return sm, false
	}
	sm.logged.Add(1)
	return sm, true
}

// FrameLog logs msg under category if its sampler allows it.
func (s *SampledLogger) FrameLog(level logrus.Level, category, msg string, fields map[string]interface{}) {
	sm, ok := s.allow(category)
	if !ok {
		return
	}

	if fields == nil {
		fields = make(map[string]interface{}, 2)
	}
	fields["category"] = category
	if sm != nil {
		if dropped := sm.total.Load() - sm.logged.Load(); dropped > 0 {
			fields["sampled_dropped"] = dropped
		}
	}
	s.base.WithFields(fields).Log(level, msg)
}

func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.FrameLog(logrus.InfoLevel, category, msg, fields)
}

func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.FrameLog(logrus.DebugLevel, category, msg, fields)
}

func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.FrameLog(logrus.WarnLevel, category, msg, fields)
}

// ErrorWithCategory is never sampled.
func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields["category"] = category
	s.base.WithFields(fields).Error(msg)
}

// Stats returns a snapshot of every configured sampler.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SamplerStats, len(s.samplers))
	for name, sm := range s.samplers {
		total, logged := sm.total.Load(), sm.logged.Load()
		st := SamplerStats{Name: name, Total: total, Logged: logged, Dropped: total - logged}
		if total > 0 {
			st.Rate = float64(logged) / float64(total)
		}
		out[name] = st
	}
	return out
}

// WithFrame returns a logger carrying the fields of one frame cycle. It
// shares s's samplers.
func (s *SampledLogger) WithFrame(name string, index uint64, slot int) *SampledLogger {
	return s.derive(WithFrame(s.base, name, index, slot))
}

func (s *SampledLogger) derive(base Logger) *SampledLogger {
	return &SampledLogger{base: base, mu: s.mu, samplers: s.samplers}
}

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return s.derive(s.base.WithFields(fields))
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return s.derive(s.base.WithField(key, value))
}

func (s *SampledLogger) WithError(err error) Logger {
	return s.derive(s.base.WithError(err))
}

func (s *SampledLogger) Debug(args ...interface{}) { s.base.Debug(args...) }
func (s *SampledLogger) Info(args ...interface{})  { s.base.Info(args...) }
func (s *SampledLogger) Warn(args ...interface{})  { s.base.Warn(args...) }
func (s *SampledLogger) Error(args ...interface{}) { s.base.Error(args...) }

func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) {
	s.base.Log(level, args...)
}

func (s *SampledLogger) Debugf(format string, args ...interface{}) { s.base.Debugf(format, args...) }
func (s *SampledLogger) Infof(format string, args ...interface{})  { s.base.Infof(format, args...) }
func (s *SampledLogger) Warnf(format string, args ...interface{})  { s.base.Warnf(format, args...) }
func (s *SampledLogger) Errorf(format string, args ...interface{}) { s.base.Errorf(format, args...) }

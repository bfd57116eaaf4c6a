package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zsiec/cloudstream/internal/logger"
)

// Runner drives a Controller from a paced scheduling tick. Each tick waits
// for the previous cycle, so cycles never overlap.
type Runner struct {
	ctrl    *Controller
	limiter *rate.Limiter
	logger  logger.Logger

	mu        sync.RWMutex
	session   Session
	observers []func(Session)
}

// NewRunner paces ticks at tickRate per second with the given burst.
func NewRunner(ctrl *Controller, initial Session, tickRate float64, burst int, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNullLogger()
	}
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		ctrl:    ctrl,
		limiter: rate.NewLimiter(rate.Limit(tickRate), burst),
		logger:  log.WithField("component", "stream_runner"),
		session: initial,
	}
}

// Observe registers fn to receive the session after every tick. It must
// be called before Run.
func (r *Runner) Observe(fn func(Session)) {
	r.observers = append(r.observers, fn)
}

// Session returns the latest session state.
func (r *Runner) Session() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// Run ticks until the session halts or ctx is cancelled. It returns the
// error that halted the session, or ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	s := r.Session()
	r.logger.WithFields(map[string]interface{}{
		"session_id":     s.ID,
		"start_index":    s.FrameIndex,
		"rotation_width": s.Width,
		"tick_rate":      float64(r.limiter.Limit()),
	}).Info("Streaming session started")

	for {
		if err := r.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("tick limiter: %w", err)
		}

		next, err := r.ctrl.Tick(ctx, r.Session())
		r.mu.Lock()
		r.session = next
		r.mu.Unlock()
		for _, fn := range r.observers {
			fn(next)
		}

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrCycleInFlight):
			continue
		case next.Halted:
			r.logger.WithFields(map[string]interface{}{
				"session_id": next.ID,
				"published":  next.Published,
				"elapsed":    next.Elapsed().String(),
			}).Warn("Streaming session stopped")
			return err
		default:
			return err
		}
	}
}

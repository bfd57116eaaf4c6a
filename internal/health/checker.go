package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zsiec/cloudstream/internal/logger"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check represents a health check result.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"-"`
	DurationMS  float64       `json:"duration_ms"`
}

// Checker is the interface that health checkers must implement.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// DegradedError marks a failure that leaves the service usable.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string { return e.Reason }

// Manager manages health checks.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
	results  map[string]*Check
	mu       sync.RWMutex
	logger   logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Manager{
		results: make(map[string]*Check),
		timeout: 5 * time.Second,
		logger:  log.WithField("component", "health"),
	}
}

// Register adds a new health checker.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
	m.logger.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// RunChecks executes all registered health checks concurrently.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	results := make(map[string]*Check, len(checkers))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			check := m.run(ctx, c)
			rmu.Lock()
			results[check.Name] = check
			rmu.Unlock()
		}(c)
	}
	wg.Wait()

	m.mu.Lock()
	for name, check := range results {
		m.results[name] = check
	}
	m.mu.Unlock()
	return results
}

func (m *Manager) run(ctx context.Context, c Checker) *Check {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	d := time.Since(start)

	check := &Check{
		Name:        c.Name(),
		Status:      StatusOK,
		LastChecked: time.Now(),
		Duration:    d,
		DurationMS:  float64(d.Microseconds()) / 1000,
	}

	var degraded *DegradedError
	switch {
	case err == nil:
		m.logger.WithField("checker", c.Name()).Debug("Health check passed")
		return check
	case errors.As(err, &degraded):
		check.Status = StatusDegraded
	case errors.Is(err, context.DeadlineExceeded):
		check.Status = StatusDown
		err = errors.New("health check timed out")
	default:
		check.Status = StatusDown
	}
	check.Message = err.Error()

	m.logger.WithFields(map[string]interface{}{
		"checker":  c.Name(),
		"status":   check.Status,
		"duration": d.String(),
	}).WithError(err).Warn("Health check failed")
	return check
}

// GetResults returns a copy of the latest results.
func (m *Manager) GetResults() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		c := *v
		results[k] = &c
	}
	return results
}

// GetOverallStatus folds the latest results into one status. Before the
// first run it reports down.
func (m *Manager) GetOverallStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}
	overall := StatusOK
	for _, check := range m.results {
		switch check.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// StartPeriodicChecks runs all checks every interval until ctx is done.
func (m *Manager) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(ctx)
	for {
		select {
		case <-ticker.C:
			m.RunChecks(ctx)
		case <-ctx.Done():
			m.logger.Info("Stopping periodic health checks")
			return
		}
	}
}

package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zsiec/hostpanel/internal/logger"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// DefaultCheckTimeout bounds a single checker when the manager is built
// without one.
const DefaultCheckTimeout = 5 * time.Second

// Check is the latest result of one checker.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"-"`
	DurationMS  float64       `json:"duration_ms"`
}

// Checker probes one dependency. A nil error means healthy; an error made
// with Degraded lowers the status without taking the service down.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type degradedError struct{ err error }

func (d degradedError) Error() string { return d.err.Error() }
func (d degradedError) Unwrap() error { return d.err }

// Degraded marks err as a partial outage: the bot keeps serving, with stale
// data or reduced features.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return degradedError{err: err}
}

func statusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var d degradedError
	if errors.As(err, &d) {
		return StatusDegraded
	}
	return StatusDown
}

// Manager runs the registered checkers and keeps their last results.
type Manager struct {
	checkers []Checker
	results  map[string]*Check
	timeout  time.Duration
	mu       sync.RWMutex
	log      logger.Logger
}

// NewManager creates a manager; timeout bounds each checker run.
func NewManager(log logger.Logger, timeout time.Duration) *Manager {
	if log == nil {
		log = logger.NewNullLogger()
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Manager{
		results: make(map[string]*Check),
		timeout: timeout,
		log:     log,
	}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.log.WithField("checker", c.Name()).Debug("Registered health checker")
}

// RunChecks runs every checker concurrently and records the results.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	out := make(chan *Check, len(checkers))
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			out <- m.run(ctx, c)
		}(c)
	}
	wg.Wait()
	close(out)

	results := make(map[string]*Check, len(checkers))
	m.mu.Lock()
	for check := range out {
		results[check.Name] = check
		m.results[check.Name] = check
	}
	m.mu.Unlock()
	return results
}

func (m *Manager) run(ctx context.Context, c Checker) *Check {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)
	d := time.Since(start)

	check := &Check{
		Name:        c.Name(),
		Status:      statusOf(err),
		LastChecked: time.Now(),
		Duration:    d,
		DurationMS:  float64(d.Milliseconds()),
	}
	fields := map[string]interface{}{"checker": check.Name, "duration": d}

	switch {
	case err == nil:
		m.log.WithFields(fields).Debug("Health check passed")
	case errors.Is(err, context.DeadlineExceeded) || checkCtx.Err() != nil:
		check.Status = StatusDown
		check.Message = "Health check timed out"
		m.log.WithFields(fields).Warn("Health check timed out")
	default:
		check.Message = err.Error()
		if check.Status == StatusDegraded {
			m.log.WithFields(fields).WithError(err).Warn("Health check degraded")
		} else {
			m.log.WithFields(fields).WithError(err).Error("Health check failed")
		}
	}
	return check
}

// Results returns copies of the latest results.
func (m *Manager) Results() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		c := *v
		results[k] = &c
	}
	return results
}

// Overall folds the latest results: any down is down, any degraded is
// degraded. Nothing checked yet counts as down.
func (m *Manager) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}
	overall := StatusOK
	for _, c := range m.results {
		switch c.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// Run checks once, then on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(ctx)
	for {
		select {
		case <-ticker.C:
			m.RunChecks(ctx)
		case <-ctx.Done():
			m.log.Debug("Stopping periodic health checks")
			return
		}
	}
}

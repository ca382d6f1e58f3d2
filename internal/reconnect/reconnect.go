// Package reconnect provides backoff strategies and a retry loop for calls
// to remote services: idempotent hosting API reads and the initial gateway
// connection.
package reconnect

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sync"
	"time"

	"github.com/zsiec/hostpanel/internal/logger"
)

// Strategy defines the reconnection strategy interface
type Strategy interface {
	// NextDelay returns the next delay duration and whether to continue retrying
	NextDelay() (time.Duration, bool)
	// Reset resets the strategy to initial state
	Reset()
}

// ExponentialBackoff implements exponential backoff with ±20% jitter.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int // 0 retries forever

	currentDelay time.Duration
	retryCount   int
	mu           sync.Mutex
}

func NewExponentialBackoff(initialDelay, maxDelay time.Duration, multiplier float64, maxRetries int) *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Multiplier:   multiplier,
		MaxRetries:   maxRetries,
		currentDelay: initialDelay,
	}
}

func (e *ExponentialBackoff) NextDelay() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.MaxRetries > 0 && e.retryCount >= e.MaxRetries {
		return 0, false
	}

	jitter := 0.8 + (0.4 * rand.Float64())
	delay := time.Duration(float64(e.currentDelay) * jitter)

	e.currentDelay = time.Duration(float64(e.currentDelay) * e.Multiplier)
	if e.currentDelay > e.MaxDelay {
		e.currentDelay = e.MaxDelay
	}
	e.retryCount++

	return delay, true
}

func (e *ExponentialBackoff) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentDelay = e.InitialDelay
	e.retryCount = 0
}

// LinearBackoff waits the same Delay between attempts.
type LinearBackoff struct {
	Delay      time.Duration
	MaxRetries int

	retryCount int
	mu         sync.Mutex
}

func NewLinearBackoff(delay time.Duration, maxRetries int) *LinearBackoff {
	return &LinearBackoff{
		Delay:      delay,
		MaxRetries: maxRetries,
	}
}

func (l *LinearBackoff) NextDelay() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.MaxRetries > 0 && l.retryCount >= l.MaxRetries {
		return 0, false
	}

	l.retryCount++
	return l.Delay, true
}

func (l *LinearBackoff) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryCount = 0
}

// NoRetry never retries.
type NoRetry struct{}

func (NoRetry) NextDelay() (time.Duration, bool) { return 0, false }
func (NoRetry) Reset()                           {}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Hooks observe a Retry loop. Any field may be nil.
type Hooks struct {
	// OnRetry runs before waiting delay for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnGiveUp runs once when the strategy is exhausted.
	OnGiveUp func(attempts int, err error)
}

// Retry calls op until it succeeds, returns a Permanent error, the strategy
// runs out, or ctx is done. The strategy is reset before the first attempt.
// It returns the last error op produced, unwrapped from Permanent.
func Retry(ctx context.Context, strategy Strategy, log logger.Logger, hooks Hooks, op func(ctx context.Context) error) error {
	strategy.Reset()

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if stderrors.As(err, &perm) {
			return perm.err
		}

		if ctx.Err() != nil {
			return err
		}

		delay, ok := strategy.NextDelay()
		if !ok {
			if hooks.OnGiveUp != nil {
				hooks.OnGiveUp(attempt, err)
			}
			if attempt > 1 {
				log.WithError(err).WithField("attempts", attempt).Warn("Giving up after retries")
			}
			return err
		}

		if hooks.OnRetry != nil {
			hooks.OnRetry(attempt, err, delay)
		}
		log.WithError(err).WithFields(map[string]interface{}{
			"attempt":  attempt,
			"retry_in": delay,
		}).Debug("Attempt failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

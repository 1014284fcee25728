package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing, reject calls
	BreakerHalfOpen                     // probing recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// CircuitBreaker isolates a flaky upstream: after enough consecutive
// failures it opens and callers skip the upstream entirely until the
// cool-off passes. The monitoring loop uses one around snapshot fetches
// so a dead exchange endpoint degrades to alerts instead of a retry storm.
type CircuitBreaker struct {
	name string
	mu   sync.Mutex

	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time

	failureThreshold int
	successThreshold int
	coolOff          time.Duration
}

// NewCircuitBreaker creates a breaker with the standard thresholds:
// 5 failures to open, 2 half-open successes to close, 30s cool-off.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		coolOff:          30 * time.Second,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(cb.lastFailure) > cb.coolOff {
			cb.state = BreakerHalfOpen
			cb.successes = 0
			slog.Info("Circuit breaker half-open", slog.String("name", cb.name))
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess feeds back a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			slog.Info("Circuit breaker closed", slog.String("name", cb.name))
		}
	}
}

// RecordFailure feeds back a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = BreakerOpen
			slog.Warn("Circuit breaker open",
				slog.String("name", cb.name), slog.Int("failures", cb.failures))
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.successes = 0
		slog.Warn("Circuit breaker reopened", slog.String("name", cb.name))
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

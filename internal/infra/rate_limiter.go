package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RequestLimiter enforces a client-side request budget: at most
// maxRequests calls per sliding window. When the budget is exhausted the
// caller blocks until the window resets; callers never see a rate-limit
// error, only added latency.
type RequestLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	count       int
	windowStart time.Time
}

// NewRequestLimiter creates a limiter for maxRequests per window.
func NewRequestLimiter(maxRequests int, window time.Duration) *RequestLimiter {
	return &RequestLimiter{
		maxRequests: maxRequests,
		window:      window,
		windowStart: time.Now(),
	}
}

// Wait consumes one request from the budget, blocking until the window
// resets when the budget is spent. The wait is cancelable through ctx.
// Woken waiters recheck the budget so that concurrent blockers share
// the new window instead of each claiming a fresh one.
func (l *RequestLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	for {
		now := time.Now()
		if now.Sub(l.windowStart) >= l.window {
			l.count = 0
			l.windowStart = now
		}

		if l.count < l.maxRequests {
			l.count++
			l.mu.Unlock()
			return nil
		}

		waitFor := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		if waitFor > 0 {
			slog.Info("Request budget exhausted, waiting for window reset",
				slog.Duration("wait", waitFor))
			timer := time.NewTimer(waitFor)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			timer.Stop()
		}
		l.mu.Lock()
	}
}

// Remaining returns the unused budget in the current window.
func (l *RequestLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.windowStart) >= l.window {
		return l.maxRequests
	}
	return l.maxRequests - l.count
}

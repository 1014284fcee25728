package infra

import "time"

const (
	// Stream reconnect pacing.
	streamBaseDelay = 3 * time.Second

	// Retry pacing for REST-side callers.
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// LinearBackoff returns attempt * base delay, used between websocket
// reconnect attempts. Attempt counts from 1; non-positive attempts get
// the base delay.
func LinearBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * streamBaseDelay
}

// RetryBackoff returns the capped doubling delay for the given retry
// count: base * 2^retry, capped at retryMaxDelay.
func RetryBackoff(retry int) time.Duration {
	if retry < 0 {
		return retryBaseDelay
	}
	// 2^30 seconds already exceeds any sensible cap.
	if retry > 30 {
		return retryMaxDelay
	}

	d := retryBaseDelay * time.Duration(1<<retry)
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

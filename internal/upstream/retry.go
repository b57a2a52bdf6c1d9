package upstream

import (
	"math/rand"
	"time"
)

// RetryPolicy decides retry vs. surface over (attempt count, failure kind).
// It is independent of the transport so it can be unit-tested without
// network calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// ShouldRetry reports whether another attempt is allowed after the given
// 1-based attempt failed with kind.
func (p RetryPolicy) ShouldRetry(attempt int, kind Kind) bool {
	return attempt < p.MaxAttempts && Retryable(kind)
}

// Backoff returns the delay before the attempt following the given 1-based
// failed attempt: exponential in the attempt number with ±50% jitter, capped
// at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)))
	return d/2 + jitter/2
}

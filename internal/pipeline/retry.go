package pipeline

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls retry pacing for transient failures. Delays grow
// exponentially from BaseDelay with optional jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      bool
}

// DefaultRetryPolicy matches the embedding stage budget.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Jitter:      true,
}

// Delay returns the backoff before the given attempt (0-based). Attempt 0
// has no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay << uint(attempt-1)
	if p.Jitter {
		delay += time.Duration(rand.Int63n(int64(p.BaseDelay)))
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. It stops
// early on success, on a non-retryable error, or when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

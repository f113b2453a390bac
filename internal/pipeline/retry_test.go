package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond}
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected immediate success, err=%v calls=%d", err, calls)
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond}
	calls := 0
	permanent := errors.New("permanent")
	err := policy.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single attempt for permanent error, err=%v calls=%d", err, calls)
	}
}

func TestRetryPolicyExhaustsRetryableAttempts(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond}
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &ServiceError{Op: "embed", Retryable: true, Err: errors.New("throttled")}
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected all attempts consumed, err=%v calls=%d", err, calls)
	}
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}
	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return &ServiceError{Op: "embed", Retryable: true, Err: errors.New("throttled")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt before cancellation, got %d", calls)
	}
}

func TestServiceErrorRetryableVerdict(t *testing.T) {
	t.Parallel()

	retryable := &ServiceError{Op: "embed", Retryable: true, Err: errors.New("throttled")}
	if !IsRetryable(retryable) {
		t.Fatalf("expected retryable verdict")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("did not expect plain error to be retryable")
	}
	permanent := &ServiceError{Op: "embed", Retryable: false, Err: errors.New("bad input")}
	if IsRetryable(permanent) {
		t.Fatalf("did not expect permanent service error to be retryable")
	}
}

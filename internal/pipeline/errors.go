package pipeline

import (
	"errors"
	"fmt"
)

// ServiceError wraps a stage failure with a retryability verdict so callers
// can decide between requeueing and marking an item failed.
type ServiceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a retryable verdict.
func IsRetryable(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Retryable
	}
	return false
}

// ErrThrottleBudgetExhausted aborts an embedding batch after too many
// consecutive throttle rejections. Items already marked keep their state;
// the rest stay pending for the next run.
var ErrThrottleBudgetExhausted = errors.New("embedding throttle budget exhausted")

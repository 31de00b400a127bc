package jobtree

import (
	"context"
	"errors"
	"fmt"
)

// CancelError is the cause recorded when a job is cancelled explicitly
// via [Job.Cancel] or [Scope.Cancel]. It is a cancellation signal, not an
// application failure: the aggregator never records it as a primary or
// suppressed failure.
type CancelError struct {
	// Cause is the optional reason supplied by the caller. May be nil.
	Cause error
}

func (e *CancelError) Error() string {
	if e.Cause == nil {
		return "jobtree: cancelled"
	}
	return fmt.Sprintf("jobtree: cancelled: %v", e.Cause)
}

func (e *CancelError) Unwrap() error { return e.Cause }

// Is makes CancelError match [context.Canceled] so callers using
// errors.Is(err, context.Canceled) treat explicit cancellation uniformly
// with context cancellation.
func (e *CancelError) Is(target error) bool {
	return target == context.Canceled
}

// IsCancellation reports whether err is a cancellation signal rather than
// an application failure: a [*CancelError], [context.Canceled], or
// [context.DeadlineExceeded] anywhere in err's chain.
//
// The distinction matters for propagation: cancellation flows downward to
// descendants but is never reported as a failure, while application
// failures propagate per the scope's [Policy].
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancelError
	return errors.As(err, &ce) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

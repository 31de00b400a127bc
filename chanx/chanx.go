package chanx

import (
	"context"
	"time"
)

// Send sends v to ch, unblocking early if ctx is cancelled.
// It returns nil on successful send, or the context error if cancelled.
func Send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv receives a value from ch, unblocking early if ctx is cancelled.
// It returns the value, a boolean indicating whether the channel is
// still open (false means ch was closed), and any context error.
func Recv[T any](ctx context.Context, ch <-chan T) (T, bool, error) {
	select {
	case v, ok := <-ch:
		return v, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// TrySend attempts a non-blocking send.
// It reports whether the value was sent.
func TrySend[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

// TryRecv attempts a non-blocking receive. ok reports whether a value
// was received; open is false only when the channel was closed.
func TryRecv[T any](ch <-chan T) (v T, ok bool, open bool) {
	select {
	case v, open = <-ch:
		return v, open, open
	default:
		return v, false, true
	}
}

// SendTimeout sends v to ch, giving up after d or on cancellation.
// It returns [context.DeadlineExceeded] if the deadline elapsed first.
func SendTimeout[T any](ctx context.Context, ch chan<- T, v T, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case ch <- v:
		return nil
	case <-t.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecvTimeout receives from ch, giving up after d or on cancellation.
// It returns [context.DeadlineExceeded] if the deadline elapsed first.
func RecvTimeout[T any](ctx context.Context, ch <-chan T, d time.Duration) (T, bool, error) {
	var zero T
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case v, ok := <-ch:
		return v, ok, nil
	case <-t.C:
		return zero, false, context.DeadlineExceeded
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

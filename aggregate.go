package jobtree

import (
	"fmt"
	"strings"
	"sync"
)

// AggregateError is the failure reported by a job whose subtree raised
// more than one concurrent application failure. The first failure
// observed by the job's aggregator is Primary; every later failure is
// suppressed and kept in Secondary, in arrival order.
//
// Cancellation signals are never part of an AggregateError: they are
// structurally distinct from application failures (see [IsCancellation]).
type AggregateError struct {
	// Primary is the failure that won the race: the first one observed.
	Primary error

	// Secondary holds the suppressed concurrent failures in the order
	// their observations arrived. Never empty; a sole failure is
	// reported directly, not wrapped in an AggregateError.
	Secondary []error
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v", e.Primary)
	fmt.Fprintf(&b, " (and %d suppressed: ", len(e.Secondary))
	for i, sec := range e.Secondary {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%v", sec)
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap exposes the primary and all suppressed failures to
// [errors.Is] and [errors.As].
func (e *AggregateError) Unwrap() []error {
	out := make([]error, 0, 1+len(e.Secondary))
	out = append(out, e.Primary)
	out = append(out, e.Secondary...)
	return out
}

// aggregator implements first-failure-wins collection for one job.
// The job's own body failure and the failures of its fail-fast children
// all funnel through observe; the mutex serializes concurrent arrivals,
// so "first" means arrival order at the lock, not child creation order.
type aggregator struct {
	mu        sync.Mutex
	primary   error
	secondary []error
}

// observe records err and reports whether it became the primary failure.
// Cancellation signals are ignored entirely.
func (a *aggregator) observe(err error) (first bool) {
	if err == nil || IsCancellation(err) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.primary == nil {
		a.primary = err
		return true
	}
	a.secondary = append(a.secondary, err)
	return false
}

// failed reports whether any failure has been observed.
func (a *aggregator) failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.primary != nil
}

// err returns the aggregated failure: nil if none, the primary alone if
// no failure was suppressed, or an [*AggregateError] otherwise.
func (a *aggregator) err() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.primary == nil:
		return nil
	case len(a.secondary) == 0:
		return a.primary
	default:
		return &AggregateError{
			Primary:   a.primary,
			Secondary: a.secondary,
		}
	}
}

package jobtree

import (
	"errors"
	"fmt"
)

// JobError wraps an application failure together with the [JobInfo] of
// the job that raised it. Every local body failure is wrapped in a
// JobError before it enters failure aggregation, so callers can always
// attribute a failure to the job it came from, however deep the tree.
type JobError struct {
	Job JobInfo
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %q failed: %v", e.Job.Name, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// IsJobError reports whether err (or any error in its chain) is a [*JobError].
func IsJobError(err error) bool {
	if err == nil {
		return false
	}
	var je *JobError
	return errors.As(err, &je)
}

// JobOf extracts the [JobInfo] from the first [*JobError] in err's chain.
// Returns false if no JobError is found.
func JobOf(err error) (JobInfo, bool) {
	if err == nil {
		return JobInfo{}, false
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Job, true
	}
	return JobInfo{}, false
}

// CauseOf unwraps the first [*JobError] in err's chain and returns its
// underlying cause. If err is not a JobError, it is returned as-is.
// Returns nil if err is nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Err
	}

	return err
}

// AllJobErrors recursively collects every [*JobError] from err's chain,
// including suppressed failures inside an [*AggregateError] and errors
// wrapped via [errors.Join]. Returns nil if none are found.
func AllJobErrors(err error) []*JobError {
	if err == nil {
		return nil
	}

	var out []*JobError
	collectJobErrors(err, &out)
	return out
}

func collectJobErrors(err error, out *[]*JobError) {
	switch e := err.(type) {
	case *JobError:
		*out = append(*out, e)
		collectJobErrors(e.Err, out)

	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectJobErrors(sub, out)
		}

	case interface{ Unwrap() error }:
		collectJobErrors(e.Unwrap(), out)
	}
}

package jobtree

// OutcomeKind classifies how a job terminated.
type OutcomeKind int

const (
	// OutcomeSuccess means the body returned nil and every child
	// completed.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeFailure means the job or one of its fail-fast children
	// raised an application failure. Err carries the failure, possibly
	// an [*AggregateError] when concurrent failures were suppressed.
	OutcomeFailure

	// OutcomeCancelled means the job was cancelled without an
	// application failure of its own. Err carries the cancellation
	// cause, never an application failure.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailure:
		return "Failure"
	case OutcomeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Outcome is the immutable result of a terminal job. It is written
// exactly once, before the job's done channel is closed, so readers that
// observed [Job.Done] may read it without synchronization.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Failed reports whether the outcome is an application failure.
func (o Outcome) Failed() bool { return o.Kind == OutcomeFailure }

// Cancelled reports whether the outcome is a cancellation.
func (o Outcome) Cancelled() bool { return o.Kind == OutcomeCancelled }

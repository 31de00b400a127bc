package jobtree

// State is the lifecycle state of a [Job].
//
// A job moves through the states in one direction only:
//
//	New → Active → Completing → Completed
//	              ↘ Cancelling → Cancelled
//
// Completed and Cancelled are terminal. A terminal job never transitions
// again and its [Outcome] is immutable.
type State int32

const (
	// StateNew is a job that has been created but not started.
	// Lazy jobs (see [NewDeferred]) stay New until started explicitly
	// or until the first Result/Join call.
	StateNew State = iota

	// StateActive is a job whose body is running (or queued to run).
	StateActive

	// StateCompleting is a job whose body returned normally and which
	// is now waiting for its remaining children to reach a terminal
	// state.
	StateCompleting

	// StateCancelling is a job that observed a cancellation request or
	// an unrecovered failure and is waiting for its children to
	// terminate. Cancellation of children is cooperative.
	StateCancelling

	// StateCompleted is the terminal success state.
	StateCompleted

	// StateCancelled is the terminal state reached after cancellation
	// or failure. The job's [Outcome] distinguishes the two.
	StateCancelled
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateActive:
		return "Active"
	case StateCompleting:
		return "Completing"
	case StateCancelling:
		return "Cancelling"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// canTransition reports whether a job may move from to next.
// Self-transitions are not legal; callers treat them as no-ops instead.
func canTransition(from, next State) bool {
	switch from {
	case StateNew:
		return next == StateActive || next == StateCancelled
	case StateActive:
		return next == StateCompleting || next == StateCancelling
	case StateCompleting:
		return next == StateCompleted || next == StateCancelling
	case StateCancelling:
		return next == StateCancelled
	default: // terminal
		return false
	}
}

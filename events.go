package jobtree

import (
	"time"

	"github.com/google/uuid"
)

// JobInfo identifies a job to observability hooks and error wrappers.
type JobInfo struct {
	// ID is the job's unique identity, assigned at creation.
	ID uuid.UUID

	// Name is the caller-supplied name passed to Spawn.
	Name string
}

// EventKind classifies a [JobEvent].
type EventKind int

const (
	// EventStarted fires when a job's body begins executing.
	EventStarted EventKind = iota

	// EventDone fires when a job's body returns nil.
	EventDone

	// EventErrored fires when a job's body returns an application failure.
	EventErrored

	// EventPanicked fires when a job's body panics.
	EventPanicked

	// EventCancelled fires when a job's body ends due to cancellation.
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "Started"
	case EventDone:
		return "Done"
	case EventErrored:
		return "Errored"
	case EventPanicked:
		return "Panicked"
	case EventCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// JobEvent is delivered to the [WithOnEvent] hook for every body
// lifecycle change. Err is nil except for Errored and Panicked events.
// Duration is zero for Started events.
type JobEvent struct {
	Kind     EventKind
	Job      JobInfo
	Err      error
	Duration time.Duration
}

// Metrics is a point-in-time snapshot of scope activity, delivered
// periodically to the [WithOnMetrics] hook.
type Metrics struct {
	TotalSpawned int64 // jobs spawned since scope creation
	Active       int64 // bodies currently executing
	Completed    int64 // bodies that returned nil
	Errored      int64 // bodies that returned an application failure
	Cancelled    int64 // bodies that ended due to cancellation
	Panicked     int64 // bodies that panicked
}

// emitEvent calls the onEvent hook if registered.
func (s *scope) emitEvent(e JobEvent) {
	if s.cfg.onEvent != nil {
		s.cfg.onEvent(e)
	}
}

// emitBodyDone classifies a finished body, bumps the matching counter,
// and emits the completion event.
func (s *scope) emitBodyDone(info JobInfo, err error, d time.Duration) {
	var kind EventKind
	switch {
	case err == nil:
		kind = EventDone
		s.completed.Add(1)
	case isPanicErr(err):
		kind = EventPanicked
		s.panicked.Add(1)
	case IsCancellation(err):
		kind = EventCancelled
		s.cancelledN.Add(1)
	default:
		kind = EventErrored
		s.errored.Add(1)
	}

	s.emitEvent(JobEvent{
		Kind:     kind,
		Job:      info,
		Err:      err,
		Duration: d,
	})
}

// snapshot builds a Metrics snapshot from the scope counters.
func (s *scope) snapshot() Metrics {
	return Metrics{
		TotalSpawned: s.totalSpawned.Load(),
		Active:       s.active.Load(),
		Completed:    s.completed.Load(),
		Errored:      s.errored.Load(),
		Cancelled:    s.cancelledN.Load(),
		Panicked:     s.panicked.Load(),
	}
}

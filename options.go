package jobtree

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Policy determines how a [Scope] reacts to application failures raised
// by child jobs. It is chosen at scope creation and applies uniformly to
// every job spawned within the scope.
type Policy int

const (
	// FailFast cancels all sibling jobs and the parent when a child
	// fails. The failure propagates upward until it reaches the root,
	// where [Scope.Wait] returns it. Concurrent failures are aggregated
	// first-observed-wins (see [AggregateError]).
	FailFast Policy = iota

	// Supervise isolates failures: a child's failure never cancels its
	// siblings or its parent. The failure is visible only through that
	// child's own handle ([Job.Err], [Deferred.Result]) and through the
	// [WithOnChildFailure] hook if one is registered.
	Supervise
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "FailFast"
	case Supervise:
		return "Supervise"
	default:
		return "Unknown"
	}
}

type config struct {
	policy          Policy
	limit           int
	panicAsErr      bool
	clk             clock.Clock
	sched           Scheduler
	onStart         func(JobInfo)
	onDone          func(JobInfo, error, time.Duration)
	onEvent         func(JobEvent)
	onChildFailure  func(JobInfo, error)
	onMetrics       func(Metrics)
	metricsInterval time.Duration
}

// Option configures a [Scope].
type Option func(*config)

func defaultConfig() config {
	return config{
		policy: FailFast,
		clk:    clock.New(),
		sched:  goScheduler{},
	}
}

// WithPolicy sets the failure propagation policy for the scope.
// It panics if p is not a known Policy value.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		switch p {
		case FailFast, Supervise:
			c.policy = p
		default:
			panic("jobtree: invalid policy")
		}
	}
}

// WithLimit sets the maximum number of job bodies that can execute
// concurrently within the scope. Jobs beyond the limit block until a
// slot becomes available or the job is cancelled while waiting.
//
// A limit of zero (the default) means unlimited concurrency.
// WithLimit panics if n is negative.
func WithLimit(n int) Option {
	return func(c *config) {
		if n < 0 {
			panic("jobtree: limit must be non-negative")
		}
		c.limit = n
	}
}

// WithPanicAsError converts panics in job bodies to [*PanicError]
// values treated as application failures, instead of re-raising them
// in [Scope.Wait].
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithClock injects the clock used for durations, metrics ticking, and
// the [SpawnTimeout]/[SpawnRetry] helpers. Tests inject a mock clock to
// drive timers deterministically. Defaults to the real clock.
//
// Panics if clk is nil.
func WithClock(clk clock.Clock) Option {
	if clk == nil {
		panic("jobtree: WithClock requires non-nil clock")
	}
	return func(c *config) {
		c.clk = clk
	}
}

// WithScheduler replaces the default goroutine-per-job scheduler.
// Use [Pool] to run all job bodies on a fixed set of workers.
//
// Panics if s is nil.
func WithScheduler(s Scheduler) Option {
	if s == nil {
		panic("jobtree: WithScheduler requires non-nil scheduler")
	}
	return func(c *config) {
		c.sched = s
	}
}

// WithOnStart registers a hook invoked when each job body begins
// executing. The hook runs inside the job's goroutine before the body.
func WithOnStart(fn func(JobInfo)) Option {
	return func(c *config) {
		c.onStart = fn
	}
}

// WithOnDone registers a hook invoked when each job body finishes.
// The hook receives the body's error (nil on success) and wall-clock
// duration. It runs inside the job's goroutine after the body returns.
func WithOnDone(fn func(JobInfo, error, time.Duration)) Option {
	return func(c *config) {
		c.onDone = fn
	}
}

// WithOnEvent registers a unified hook receiving a [JobEvent] for every
// body lifecycle change: started, done, errored, panicked, cancelled.
func WithOnEvent(fn func(JobEvent)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

// WithOnChildFailure registers the consumer for failures under the
// [Supervise] policy. The hook fires once per failed job with the job's
// info and failure; it runs on the failed job's goroutine.
//
// Under [FailFast] the hook is never called; failures propagate instead.
func WithOnChildFailure(fn func(JobInfo, error)) Option {
	return func(c *config) {
		c.onChildFailure = fn
	}
}

// WithOnMetrics registers a periodic metrics callback that fires every
// interval until the scope finalizes. The callback receives a snapshot
// of the scope's counters.
//
// Panics if interval <= 0 or fn is nil.
func WithOnMetrics(interval time.Duration, fn func(Metrics)) Option {
	if interval <= 0 {
		panic("jobtree: WithOnMetrics requires interval > 0")
	}
	if fn == nil {
		panic("jobtree: WithOnMetrics requires non-nil callback")
	}
	return func(c *config) {
		c.onMetrics = fn
		c.metricsInterval = interval
	}
}

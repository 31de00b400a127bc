// Package jobtree is a structured-concurrency task runtime with an
// explicit per-job lifecycle state machine.
//
// Every unit of work gets a [Job] handle with a [State] that moves
// through New, Active, Completing, Cancelling into one of the terminal
// states Completed or Cancelled. A job never terminates while any of
// its children is still running: parents always wait for their subtree.
//
// # Running Jobs
//
// The primary entry point is [Run], which creates a scope, executes a
// function that spawns jobs via [Spawner], and waits for the whole tree
// to terminate before returning:
//
//	err := jobtree.Run(ctx, func(sp jobtree.Spawner) {
//	    sp.Go("fetch", func(ctx context.Context) error {
//	        return fetch(ctx)
//	    })
//	    sp.Spawn("process", func(ctx context.Context, sub jobtree.Spawner) error {
//	        sub.Go("step-1", step1)
//	        return nil
//	    })
//	})
//
// Use [Spawner.Go] for simple jobs and [Spawner.Spawn] when the body
// needs to spawn sub-jobs of its own.
//
// For manual lifecycle control, [New] returns a [Scope] and root
// [Spawner] separately. The caller must call [Scope.Wait] to finalize.
//
// # Failure Policies
//
// The scope's [Policy] controls how a child failure propagates:
//
//   - [FailFast] (default): the first failure cancels all siblings and
//     the parent, and propagates to the root. [Scope.Wait] returns it.
//     When several children fail concurrently, the first failure
//     observed wins; the rest are kept as suppressed failures on an
//     [*AggregateError], in arrival order.
//   - [Supervise]: a child's failure never cancels its siblings or
//     parent. It is visible only through that child's own handle and
//     the [WithOnChildFailure] hook.
//
// All local body failures are wrapped in [*JobError] for attribution.
// Use [IsJobError], [JobOf], [CauseOf], and [AllJobErrors] to inspect
// them.
//
// # Cancellation
//
// Cancellation is a signal, not a failure. [Job.Cancel] marks the job
// and all descendants for cooperative cancellation; each body observes
// it at its next suspension point (a ctx.Done select or a context-aware
// channel operation from [github.com/baxromumarov/jobtree/chanx]).
// There is no forced termination. Cancellation causes are never
// recorded as primary or suppressed failures; register cleanup with
// [Job.OnCancel] rather than error paths.
//
// # Deferred Results
//
// [Async] spawns a job producing a typed value and returns a
// [Deferred]. Inside a fail-fast scope its failure propagates
// immediately, Result call or not. [NewDeferred] creates an independent
// lazy deferred whose failure surfaces only when [Deferred.Result] is
// called.
//
// # Scheduling
//
// By default each job body runs on its own goroutine. [Pool] is a
// fixed-size worker pool that implements [Scheduler]; pass it via
// [WithScheduler] to multiplex all bodies over a bounded set of
// workers, or use it standalone with [Pool.Submit]. [WithLimit] bounds
// concurrency within a scope via [Semaphore] without changing the
// scheduler.
//
// # Panic Recovery
//
// By default, a panic in any body is captured with its full stack trace
// and re-raised in [Scope.Wait]. Use [WithPanicAsError] to convert
// panics to [*PanicError] failures instead.
//
// # Observability
//
// Register hooks for job lifecycle events:
//
//   - [WithOnStart]: called when each body begins executing.
//   - [WithOnDone]: called when each body finishes, with error and duration.
//   - [WithOnEvent]: unified hook receiving [JobEvent] for every body
//     change (started, done, errored, panicked, cancelled).
//   - [WithOnMetrics]: periodic [Metrics] snapshots with counters for
//     spawned, active, completed, errored, cancelled, and panicked jobs.
//
// Timers and durations run on an injectable clock ([WithClock]), so
// tests can drive [SpawnTimeout] and [SpawnRetry] deterministically.
//
// # Helpers
//
//   - [ForEach]: apply a function to every item in a slice concurrently.
//   - [MapSlice]: transform every item concurrently, preserving order.
//   - [Race]: first success wins, remaining tasks are cancelled.
//   - [SpawnTimeout]: spawn a job with a per-job deadline.
//   - [SpawnRetry]: spawn a job with exponential-backoff retries.
package jobtree

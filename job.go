package jobtree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// JobFunc is the signature for a job body running within a scope.
// It receives a context (cancelled when the job or a fail-fast ancestor
// is cancelled) and a [Spawner] to spawn child jobs.
type JobFunc func(ctx context.Context, sp Spawner) error

// Job is the handle for one unit of concurrent work. It tracks the
// job's lifecycle [State], its children in spawn order, and — once the
// job is terminal — its immutable [Outcome].
//
// A job never reaches a terminal state while any of its children is
// non-terminal. Resolution is event-driven: the job becomes terminal
// when its body has finished and its last child has terminated,
// whichever happens later.
type Job struct {
	info   JobInfo
	s      *scope
	parent *Job

	ctx    context.Context
	cancel context.CancelCauseFunc

	body JobFunc
	sp   *spawner // handed to the body; closed when the body returns

	// agg collects this job's own body failure and, under FailFast,
	// the failures of its children. First arrival wins.
	agg aggregator

	mu          sync.Mutex
	state       State
	children    []*Job
	pending     int // direct children not yet terminal
	bodyDone    bool
	cancelReq   bool
	cancelCause error
	observers   []func(cause error)
	outcome     Outcome

	done chan struct{}
}

// newJob creates a job in StateNew and registers it with its parent.
// A nil parent makes the job the root of its scope: it runs on the
// scope's own context. Callers start the job via startIfNew.
func newJob(s *scope, parent *Job, name string, body JobFunc) *Job {
	j := &Job{
		info:   JobInfo{ID: uuid.New(), Name: name},
		s:      s,
		parent: parent,
		body:   body,
		state:  StateNew,
		done:   make(chan struct{}),
	}

	if parent == nil {
		j.ctx = s.ctx
		j.cancel = s.cancel
	} else {
		j.ctx, j.cancel = context.WithCancelCause(parent.ctx)

		parent.mu.Lock()
		if parent.state.Terminal() {
			parent.mu.Unlock()
			panic("jobtree: Spawn called after parent job terminated")
		}
		parent.children = append(parent.children, j)
		parent.pending++
		parent.mu.Unlock()
	}

	if body != nil {
		s.totalSpawned.Add(1)
	}
	return j
}

// ID returns the job's unique identity.
func (j *Job) ID() uuid.UUID { return j.info.ID }

// Name returns the name the job was spawned with.
func (j *Job) Name() string { return j.info.Name }

// Info returns the job's identity and name.
func (j *Job) Info() JobInfo { return j.info }

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Children returns the job's direct children in spawn order.
func (j *Job) Children() []*Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Job, len(j.children))
	copy(out, j.children)
	return out
}

// Done returns a channel closed when the job reaches a terminal state.
// After Done is closed, [Job.Outcome] is immutable and safe to read
// without synchronization.
func (j *Job) Done() <-chan struct{} { return j.done }

// Outcome returns the job's terminal outcome. ok is false while the job
// is still running; once ok is true, repeated calls return the same value.
func (j *Job) Outcome() (out Outcome, ok bool) {
	select {
	case <-j.done:
		return j.outcome, true
	default:
		return Outcome{}, false
	}
}

// Err returns the job's failure or cancellation cause once terminal,
// nil on success or while the job is still running.
func (j *Job) Err() error {
	out, ok := j.Outcome()
	if !ok {
		return nil
	}
	return out.Err
}

// Context returns the job's context, cancelled when the job or a
// fail-fast ancestor is cancelled.
func (j *Job) Context() context.Context { return j.ctx }

// Start moves a New job to Active and schedules its body. Calling Start
// on a job that is already Active or terminal is a no-op, so double
// starts never duplicate execution.
func (j *Job) Start() { j.startIfNew() }

// Join starts the job if needed, blocks until it is terminal, and
// returns its failure or cancellation cause (nil on success).
func (j *Job) Join() error {
	j.startIfNew()
	<-j.done
	return j.outcome.Err
}

// Cancel requests cooperative cancellation of the job and, recursively,
// all of its descendants. The request is asynchronous: the job reaches
// Cancelled only after every descendant observed the cancellation and
// terminated. cause may be nil.
//
// Cancellation is a signal distinct from failure: it is never reported
// as a primary or suppressed failure by the scope.
func (j *Job) Cancel(cause error) {
	j.requestCancel(&CancelError{Cause: cause})
}

// OnCancel registers an observer invoked once when cancellation is
// requested for the job. If the job is already cancelled (or was
// cancelled before it could run), fn runs immediately on the calling
// goroutine. Use this for cleanup-on-cancel instead of failure paths.
func (j *Job) OnCancel(fn func(cause error)) {
	j.mu.Lock()
	if j.cancelReq {
		cause := j.cancelCause
		j.mu.Unlock()
		fn(cause)
		return
	}
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.observers = append(j.observers, fn)
	j.mu.Unlock()
}

// setStateLocked transitions the job's state, panicking on a move the
// lifecycle does not permit. Self-transitions are no-ops.
func (j *Job) setStateLocked(next State) {
	if j.state == next {
		return
	}
	if !canTransition(j.state, next) {
		panic(fmt.Sprintf("jobtree: illegal state transition %s -> %s", j.state, next))
	}
	j.state = next
}

// startIfNew schedules the job's body exactly once.
func (j *Job) startIfNew() {
	j.mu.Lock()
	if j.state != StateNew {
		j.mu.Unlock()
		return
	}
	j.setStateLocked(StateActive)
	j.mu.Unlock()

	j.s.cfg.sched.Schedule(j.run)
}

// run executes the job body on the scheduler's goroutine: semaphore
// acquisition, pre-cancellation check, hooks, panic recovery, then
// finishBody.
func (j *Job) run() {
	s := j.s

	if s.sem != nil {
		if err := s.sem.Acquire(j.ctx); err != nil {
			// Cancelled while waiting for a slot. The real cause is
			// already recorded elsewhere; this job is just cancelled.
			j.finishBody(err)
			return
		}
		defer s.sem.Release()
	}

	if j.ctx.Err() != nil {
		// Cancelled before the body ever ran. Whatever the context's
		// cancel cause was (possibly a sibling's failure), this job
		// itself is cancelled, not failed.
		j.finishBody(&CancelError{Cause: context.Cause(j.ctx)})
		return
	}

	j.sp = &spawner{j: j}
	j.sp.open.Store(true)

	s.active.Add(1)
	s.emitEvent(JobEvent{Kind: EventStarted, Job: j.info})

	start := s.cfg.clk.Now()
	err := j.exec()
	elapsed := s.cfg.clk.Now().Sub(start)

	s.active.Add(-1)
	j.sp.close()

	if s.cfg.onDone != nil {
		// onDone runs outside exec — a panic here is intentionally
		// unrecovered (observability hook must not panic).
		s.cfg.onDone(j.info, err, elapsed)
	}
	s.emitBodyDone(j.info, err, elapsed)

	j.finishBody(err)
}

// exec runs the body with panic recovery. Panics surface as *PanicError
// regardless of configuration; finishBody decides whether they count as
// failures or abort the scope.
func (j *Job) exec() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()

	// The start hook runs inside exec so its panics are caught too.
	if j.s.cfg.onStart != nil {
		j.s.cfg.onStart(j.info)
	}
	return j.body(j.ctx, j.sp)
}

// finishBody records the body's result, moves the job out of Active,
// and cancels children when the body failed or was cancelled.
func (j *Job) finishBody(err error) {
	var abortPanic *PanicError
	var toCancel []*Job
	var cause error

	j.mu.Lock()
	j.bodyDone = true

	switch {
	case err == nil:
		// Normal return.

	case isPanicErr(err) && !j.s.cfg.panicAsErr:
		// Panic aborts the whole scope; the panicking job itself ends
		// Cancelled, and Wait re-raises the panic.
		var pe *PanicError
		errors.As(err, &pe)
		j.s.recordPanic(pe)
		abortPanic = pe
		if !j.cancelReq {
			j.cancelReq = true
			j.cancelCause = &CancelError{Cause: pe}
		}

	case IsCancellation(err):
		if !j.cancelReq {
			j.cancelReq = true
			j.cancelCause = err
		}

	default:
		// Application failure (or panic-as-error), attributed to this job.
		j.agg.observe(&JobError{Job: j.info, Err: err})
	}

	failed := j.agg.failed()
	if j.state == StateActive {
		if failed || j.cancelReq {
			j.setStateLocked(StateCancelling)
		} else {
			j.setStateLocked(StateCompleting)
		}
	}

	if (failed || j.cancelReq) && j.pending > 0 {
		if failed {
			cause = &CancelError{Cause: j.agg.err()}
		} else {
			cause = j.cancelCause
		}
		toCancel = j.nonTerminalChildrenLocked()
	}
	var obs []func(cause error)
	if j.cancelReq {
		obs = j.takeObserversLocked()
	}
	cancelCause := j.cancelCause
	j.mu.Unlock()

	if abortPanic != nil {
		j.s.abort(abortPanic)
	}
	for _, fn := range obs {
		fn(cancelCause)
	}
	for _, c := range toCancel {
		c.requestCancel(cause)
	}

	j.maybeResolve()
}

// childTerminal is called by a direct child after it resolved.
// Under FailFast a child failure is offered to this job's aggregator;
// the first one cancels this job and the child's siblings. Under
// Supervise the failure is reported to the consumer hook only.
func (j *Job) childTerminal(c *Job) {
	var toCancel []*Job
	var cause error
	var supervised bool

	j.mu.Lock()
	j.pending--

	if c.outcome.Failed() {
		switch j.s.cfg.policy {
		case FailFast:
			if j.agg.observe(c.outcome.Err) {
				cause = &CancelError{Cause: c.outcome.Err}
				if !j.cancelReq {
					j.cancelReq = true
					j.cancelCause = cause
				}
				if j.state == StateActive || j.state == StateCompleting {
					j.setStateLocked(StateCancelling)
				}
				toCancel = j.nonTerminalChildrenLocked()
			}
		case Supervise:
			supervised = true
		}
	}
	var obs []func(cause error)
	if cause != nil {
		obs = j.takeObserversLocked()
	}
	j.mu.Unlock()

	if supervised && j.s.cfg.onChildFailure != nil {
		j.s.cfg.onChildFailure(c.info, c.outcome.Err)
	}

	if cause != nil {
		// Cancel this job's own context so a still-running body
		// observes the failure at its next suspension point.
		j.cancel(cause)
		for _, fn := range obs {
			fn(cause)
		}
		for _, sib := range toCancel {
			sib.requestCancel(cause)
		}
	}

	j.maybeResolve()
}

// requestCancel marks the job and all descendants for cooperative
// cancellation. It is idempotent: only the first request walks the tree.
func (j *Job) requestCancel(cause error) {
	j.mu.Lock()
	if j.state.Terminal() || j.cancelReq {
		j.mu.Unlock()
		return
	}

	if j.state == StateNew {
		// Never started: no body, no children. Resolve directly.
		j.cancelReq = true
		j.cancelCause = cause
		j.setStateLocked(StateCancelled)
		j.outcome = Outcome{Kind: OutcomeCancelled, Err: cause}
		obs := j.takeObserversLocked()
		j.mu.Unlock()

		j.cancel(cause)
		for _, fn := range obs {
			fn(cause)
		}
		close(j.done)
		j.notifyTerminal()
		return
	}

	j.cancelReq = true
	j.cancelCause = cause
	if j.state == StateActive || j.state == StateCompleting {
		j.setStateLocked(StateCancelling)
	}
	obs := j.takeObserversLocked()
	kids := j.nonTerminalChildrenLocked()
	j.mu.Unlock()

	j.cancel(cause)
	for _, fn := range obs {
		fn(cause)
	}
	for _, c := range kids {
		c.requestCancel(cause)
	}

	j.maybeResolve()
}

// maybeResolve moves the job to its terminal state once the body has
// finished and every direct child is terminal. Outcome precedence:
// recorded failure, then cancellation, then success.
func (j *Job) maybeResolve() {
	j.mu.Lock()
	if j.state.Terminal() || !j.bodyDone || j.pending > 0 {
		j.mu.Unlock()
		return
	}

	// External cancellation reaches the context before the scope watcher
	// walks the tree. Consult the context directly so a cancellation that
	// arrives as the last child terminates is not resolved as success.
	if !j.cancelReq && j.ctx.Err() != nil {
		j.cancelReq = true
		cause := context.Cause(j.ctx)
		if !IsCancellation(cause) {
			cause = &CancelError{Cause: cause}
		}
		j.cancelCause = cause
		j.setStateLocked(StateCancelling)
	}

	switch {
	case j.agg.failed():
		j.outcome = Outcome{Kind: OutcomeFailure, Err: j.agg.err()}
		j.setStateLocked(StateCancelled)
	case j.cancelReq:
		cause := j.cancelCause
		if cause == nil {
			cause = context.Canceled
		}
		j.outcome = Outcome{Kind: OutcomeCancelled, Err: cause}
		j.setStateLocked(StateCancelled)
	default:
		j.outcome = Outcome{Kind: OutcomeSuccess}
		j.setStateLocked(StateCompleted)
	}
	j.mu.Unlock()

	// Release the job's context resources. All children are already
	// terminal, so nothing observes this cancellation.
	j.cancel(nil)

	close(j.done)
	j.notifyTerminal()
}

func (j *Job) notifyTerminal() {
	if j.parent != nil {
		j.parent.childTerminal(j)
	}
}

func (j *Job) nonTerminalChildrenLocked() []*Job {
	var out []*Job
	for _, c := range j.children {
		select {
		case <-c.done:
		default:
			out = append(out, c)
		}
	}
	return out
}

func (j *Job) takeObserversLocked() []func(cause error) {
	obs := j.observers
	j.observers = nil
	return obs
}

package jobtree

import (
	"context"
	"sync"
	"sync/atomic"
)

// scope holds the shared state of one job tree: configuration, the base
// context, the semaphore backing WithLimit, captured panics, and the
// observability counters.
type scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    config
	sem    *Semaphore

	root *Job

	panicMu sync.Mutex
	panics  []*PanicError

	totalSpawned atomic.Int64
	active       atomic.Int64
	completed    atomic.Int64
	errored      atomic.Int64
	cancelledN   atomic.Int64
	panicked     atomic.Int64
}

// newScope builds the internal scope state without a root job.
func newScope(parent context.Context, opts ...Option) *scope {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &scope{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
	if cfg.limit > 0 {
		s.sem = NewSemaphore(cfg.limit)
	}
	return s
}

// startAux starts the metrics ticker and the external-cancellation
// watcher for the given top job. Both stop when the job terminates.
func (s *scope) startAux(top *Job) {
	if s.cfg.onMetrics != nil {
		go s.metricsLoop(top)
	}

	// Propagate external context cancellation into the state machine so
	// the whole tree transitions Cancelling → Cancelled, not just the
	// bodies observing ctx.Done.
	go func() {
		select {
		case <-s.ctx.Done():
			cause := context.Cause(s.ctx)
			if !IsCancellation(cause) {
				cause = &CancelError{Cause: cause}
			}
			top.requestCancel(cause)
		case <-top.done:
		}
	}()
}

func (s *scope) metricsLoop(top *Job) {
	ticker := s.cfg.clk.Ticker(s.cfg.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cfg.onMetrics(s.snapshot())
		case <-top.done:
			return
		}
	}
}

func (s *scope) recordPanic(pe *PanicError) {
	s.panicMu.Lock()
	s.panics = append(s.panics, pe)
	s.panicMu.Unlock()
}

func (s *scope) firstPanic() *PanicError {
	s.panicMu.Lock()
	defer s.panicMu.Unlock()
	if len(s.panics) == 0 {
		return nil
	}
	return s.panics[0]
}

// abort is the scope-wide reaction to a body panic when panics are not
// converted to errors: cancel everything, re-raise at Wait.
func (s *scope) abort(pe *PanicError) {
	if s.root != nil {
		s.root.requestCancel(&CancelError{Cause: pe})
	}
}

// Scope wraps a job tree and exposes lifecycle and observability
// methods. Create one via [New]; finalize with [Scope.Wait].
type Scope struct {
	s        *scope
	once     sync.Once
	result   error
	panicVal *PanicError
}

// Run creates a [Scope], invokes fn with its root [Spawner], then waits
// for every descendant job to reach a terminal state. It returns the
// root failure according to the configured [Policy] (default [FailFast]).
//
// Run is the primary entry point. The scope is finalized when fn
// returns, so no explicit cleanup is needed.
func Run(parent context.Context, fn func(sp Spawner), opts ...Option) (err error) {
	sc, sp := New(parent, opts...)

	defer func() {
		// Capture any panic from fn before finalizing.
		runPanic := recover()

		waitErr, waitPanic := sc.finalize()

		// Re-raise panics. User panics take priority over job panics.
		if runPanic != nil {
			panic(runPanic)
		}
		if waitPanic != nil {
			panic(waitPanic)
		}
		err = waitErr
	}()

	fn(sp)
	return nil
}

// New creates a [Scope] and root [Spawner] for manual lifecycle control.
// The caller must call [Scope.Wait] to finalize the scope and collect
// the result.
//
// Prefer [Run] for most use cases; use New when you need to pass the
// [Spawner] across function boundaries or integrate with existing
// lifecycle management.
func New(parent context.Context, opts ...Option) (*Scope, Spawner) {
	s := newScope(parent, opts...)

	root := newJob(s, nil, "root", nil)
	root.mu.Lock()
	root.state = StateActive
	root.mu.Unlock()
	root.sp = &spawner{j: root}
	root.sp.open.Store(true)
	s.root = root

	s.startAux(root)

	return &Scope{s: s}, root.sp
}

// Wait closes the root [Spawner], waits for every job in the scope to
// reach a terminal state, and returns the scope outcome: nil on success,
// the (possibly aggregated) failure under [FailFast], or the
// cancellation cause if the scope was cancelled. If a job panicked and
// [WithPanicAsError] was not set, Wait re-panics with the captured
// [*PanicError].
//
// Wait is idempotent; subsequent calls return the same result.
func (sc *Scope) Wait() error {
	result, pv := sc.finalize()
	if pv != nil {
		panic(pv)
	}
	return result
}

func (sc *Scope) finalize() (error, *PanicError) {
	sc.once.Do(func() {
		root := sc.s.root
		root.sp.close()
		root.finishBody(nil)
		<-root.done

		if !sc.s.cfg.panicAsErr {
			sc.panicVal = sc.s.firstPanic()
		}
		sc.result = root.outcome.Err
	})

	return sc.result, sc.panicVal
}

// Cancel requests cooperative cancellation of every job in the scope
// with the given cause. Subsequent calls have no additional effect.
func (sc *Scope) Cancel(cause error) {
	sc.s.root.Cancel(cause)
}

// Context returns the scope's context, cancelled when the scope
// finalizes or is cancelled via [Scope.Cancel].
func (sc *Scope) Context() context.Context {
	return sc.s.ctx
}

// Root returns the scope's root job handle.
func (sc *Scope) Root() *Job {
	return sc.s.root
}

// ActiveJobs returns the number of job bodies currently executing.
func (sc *Scope) ActiveJobs() int64 {
	return sc.s.active.Load()
}

// TotalSpawned returns the total number of jobs spawned in the scope,
// including those already terminal.
func (sc *Scope) TotalSpawned() int64 {
	return sc.s.totalSpawned.Load()
}

// Metrics returns a point-in-time snapshot of the scope counters.
func (sc *Scope) Metrics() Metrics {
	return sc.s.snapshot()
}

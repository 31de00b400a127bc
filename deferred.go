package jobtree

import (
	"context"
	"sync"
)

// Deferred is a job handle that also carries a typed result value.
// It fails exactly like a plain [Job]; only the result access differs.
//
// When spawned as a child of a fail-fast scope via [Async], a failure
// propagates to the parent immediately, whether or not anyone ever
// calls [Deferred.Result]. When created as an independent root entity
// via [NewDeferred], the failure is surfaced lazily: nothing observes
// it until a consumer requests the result.
type Deferred[T any] struct {
	job      *Job
	detached bool

	mu  sync.Mutex
	val T
}

// Async spawns a child job that produces a typed value and wraps the
// outcome in a [Deferred]. The job inherits the scope's lifecycle and
// failure policy: under [FailFast], a failure cancels siblings and
// propagates upward without waiting for a Result call.
func Async[T any](
	sp Spawner,
	name string,
	fn func(ctx context.Context) (T, error),
) *Deferred[T] {
	d := &Deferred[T]{}
	d.job = sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.val = v
		d.mu.Unlock()
		return nil
	})
	return d
}

// NewDeferred creates an independent lazy deferred: a root job in its
// own single-job tree, in state New. The body does not run until
// [Deferred.Start] or the first [Deferred.Result] call, and a failing
// body is reported to no one until Result is called.
func NewDeferred[T any](
	parent context.Context,
	name string,
	fn func(ctx context.Context) (T, error),
	opts ...Option,
) *Deferred[T] {
	d := &Deferred[T]{detached: true}

	s := newScope(parent, opts...)
	d.job = newJob(s, nil, name, func(ctx context.Context, _ Spawner) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.val = v
		d.mu.Unlock()
		return nil
	})
	s.startAux(d.job)

	return d
}

// Start begins executing a lazy deferred. It is idempotent and a no-op
// for deferreds spawned via [Async], which start immediately.
func (d *Deferred[T]) Start() {
	d.job.Start()
}

// Result starts the job if needed, blocks until it is terminal, and
// returns the value and the failure or cancellation cause. Repeated
// calls return the same outcome.
//
// For a detached deferred whose body panicked (and panics are not
// converted to errors), Result re-raises the captured [*PanicError] —
// the lazy equivalent of [Scope.Wait].
func (d *Deferred[T]) Result() (T, error) {
	err := d.job.Join()

	if d.detached && !d.job.s.cfg.panicAsErr {
		if pv := d.job.s.firstPanic(); pv != nil {
			panic(pv)
		}
	}

	d.mu.Lock()
	v := d.val
	d.mu.Unlock()
	return v, err
}

// Done returns a channel closed when the job is terminal. It does not
// start a lazy deferred.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.job.Done()
}

// Cancel requests cooperative cancellation of the deferred's job.
func (d *Deferred[T]) Cancel(cause error) {
	d.job.Cancel(cause)
}

// Job returns the underlying job handle.
func (d *Deferred[T]) Job() *Job {
	return d.job
}

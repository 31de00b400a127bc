package jobtree

import (
	"context"
	"sync/atomic"
)

// Spawner spawns concurrent child jobs under one parent job.
type Spawner interface {
	// Spawn starts a new child job with the given name and returns its
	// handle. The body receives a child Spawner for sub-jobs of its own.
	Spawn(name string, fn JobFunc) *Job

	// Go is shorthand for Spawn when the body needs no sub-jobs.
	Go(name string, fn func(ctx context.Context) error) *Job
}

// spawner implements Spawner for one job. It is valid only for the
// lifetime of that job's body: spawning after the body returns panics.
// This is deliberate — every job must be scoped to a live parent.
type spawner struct {
	j    *Job
	open atomic.Bool
}

func (sp *spawner) Spawn(name string, fn JobFunc) *Job {
	if !sp.open.Load() {
		panic("jobtree: Spawn called after job shutdown")
	}

	child := newJob(sp.j.s, sp.j, name, fn)
	child.startIfNew()
	return child
}

func (sp *spawner) Go(name string, fn func(ctx context.Context) error) *Job {
	return sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		return fn(ctx)
	})
}

// close marks the spawner as closed, preventing further Spawn calls.
func (sp *spawner) close() {
	sp.open.Store(false)
}

package jobtree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrJobTimeout is the failure returned by a [SpawnTimeout] job whose
// body did not finish within its deadline.
var ErrJobTimeout = errors.New("jobtree: job timed out")

// ForEach executes fn for each item in the slice concurrently, using
// the provided options to control concurrency and failure policy.
//
// This is a convenience wrapper around [Run] and [Spawner.Go].
//
//	err := jobtree.ForEach(ctx, urls, func(ctx context.Context, u string) error {
//	    return fetch(ctx, u)
//	}, jobtree.WithLimit(10))
func ForEach[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error, opts ...Option) error {
	return Run(ctx, func(sp Spawner) {
		for i, item := range items {
			sp.Go(fmt.Sprintf("foreach[%d]", i), func(ctx context.Context) error {
				return fn(ctx, item)
			})
		}
	}, opts...)
}

// MapSlice executes fn for each item concurrently and collects the
// results in the same order as the input slice. It uses [FailFast]
// policy by default.
//
// On failure, MapSlice returns nil and the failure. On success, it
// returns the results slice and nil.
func MapSlice[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), opts ...Option) ([]R, error) {
	results := make([]R, len(items))
	err := Run(ctx, func(sp Spawner) {
		for i, item := range items {
			sp.Go(fmt.Sprintf("map[%d]", i), func(ctx context.Context) error {
				r, err := fn(ctx, item)
				if err != nil {
					return err
				}
				results[i] = r // safe: each goroutine writes a unique index
				return nil
			})
		}
	}, opts...)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Race runs all tasks concurrently and returns the result of the first
// task to succeed (return nil error). The contexts of remaining tasks
// are cancelled immediately upon the first success.
//
// If all tasks fail, Race returns the zero value and the last error
// observed. If ctx is cancelled before any task succeeds, Race returns
// ctx.Err().
//
// If tasks is empty, Race returns (zero, nil).
//
// Race panics if any element of tasks is nil.
func Race[T any](
	ctx context.Context,
	tasks ...func(context.Context) (T, error),
) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, nil
	}
	for i, fn := range tasks {
		if fn == nil {
			panic(fmt.Sprintf("jobtree: Race task[%d] must not be nil", i))
		}
	}

	raceCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	type result struct {
		val T
		err error
	}

	// Buffered so all goroutines can send without blocking after the
	// first success is picked up.
	ch := make(chan result, len(tasks))

	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for _, fn := range tasks {
		go func() {
			defer wg.Done()
			val, err := fn(raceCtx)
			ch <- result{val: val, err: err}
		}()
	}

	// Close ch once all goroutines are done so the drain loop terminates.
	go func() {
		wg.Wait()
		close(ch)
	}()

	var lastErr error
	for res := range ch {
		if res.err == nil {
			cancel(nil)
			return res.val, nil
		}
		lastErr = res.err
	}

	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, lastErr
}

// SpawnTimeout spawns a job whose body must finish within d. On
// timeout the body's context is cancelled and the job fails with
// [ErrJobTimeout]. The timer runs on the scope's clock, so tests with a
// mock clock can trigger timeouts deterministically.
func SpawnTimeout(sp Spawner, name string, d time.Duration, fn func(ctx context.Context) error) *Job {
	clk := scopeOf(sp).cfg.clk

	return sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		tctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		t := clk.AfterFunc(d, func() {
			cancel(ErrJobTimeout)
		})
		defer t.Stop()

		err := fn(tctx)
		if errors.Is(context.Cause(tctx), ErrJobTimeout) {
			return ErrJobTimeout
		}
		return err
	})
}

// SpawnRetry spawns a job that retries fn up to attempts times with
// exponential backoff starting at baseDelay. Backoff waits respect
// cancellation and run on the scope's clock. The final failure wraps
// the last attempt's error.
//
// Panics if attempts <= 0 or baseDelay < 0.
func SpawnRetry(sp Spawner, name string, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) *Job {
	if attempts <= 0 {
		panic("jobtree: SpawnRetry requires attempts > 0")
	}
	if baseDelay < 0 {
		panic("jobtree: SpawnRetry requires non-negative baseDelay")
	}
	clk := scopeOf(sp).cfg.clk

	return sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		var lastErr error
		delay := baseDelay

		for attempt := 1; attempt <= attempts; attempt++ {
			lastErr = fn(ctx)
			if lastErr == nil {
				return nil
			}
			if IsCancellation(lastErr) || attempt == attempts {
				break
			}

			if delay > 0 {
				if err := sleepClock(ctx, clk, delay); err != nil {
					return err
				}
				delay *= 2
			}
		}

		if IsCancellation(lastErr) {
			return lastErr
		}
		return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
	})
}

// sleepClock blocks for d on the given clock, or until ctx is cancelled.
func sleepClock(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scopeOf recovers the scope internals behind a Spawner. Only the
// package's own spawner implements the interface.
func scopeOf(sp Spawner) *scope {
	return sp.(*spawner).j.s
}

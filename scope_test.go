package jobtree_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baxromumarov/jobtree"
)

// Chaos tests

func TestNestedJobs(t *testing.T) {
	type item struct {
		name string
		idx  int
	}

	var items = []item{
		{name: "a", idx: 1},
		{name: "b", idx: 2},
		{name: "c", idx: 3},
		{name: "d", idx: 4},
		{name: "e", idx: 5},
		{name: "f", idx: 6},
		{name: "g", idx: 7},
		{name: "h", idx: 8},
	}

	err := jobtree.Run(
		context.Background(),
		func(sp jobtree.Spawner) {
			for _, it := range items {
				sp.Spawn(
					it.name,
					func(ctx context.Context, sp jobtree.Spawner) error {
						if it.idx == 5 {
							panic("just test panic")
						}
						if it.idx%2 == 0 {
							sp.Go(
								fmt.Sprintf("%s-child", it.name),
								func(ctx context.Context) error {
									time.Sleep(10 * time.Millisecond)
									return nil
								},
							)
						}

						if it.idx == 3 {
							return errors.New("just test error")
						}

						return nil
					},
				)
			}
		},
		jobtree.WithPanicAsError(),
		jobtree.WithPolicy(jobtree.FailFast),
	)

	if err == nil {
		t.Fatal("expected error from panic or job failure, got nil")
	}
}

func TestRunAllSuccess(t *testing.T) {
	var count atomic.Int32
	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		for i := 0; i < 10; i++ {
			sp.Go("job", func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
		}
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := count.Load(); got != 10 {
		t.Fatalf("expected 10 executions, got %d", got)
	}
}

func TestFailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Bool

	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		sp.Go("failing", func(ctx context.Context) error {
			return boom
		})
		sp.Go("sibling", func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Second):
				return nil
			case <-ctx.Done():
				cancelled.Store(true)
				return ctx.Err()
			}
		})
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom in error chain, got %v", err)
	}
	if !cancelled.Load() {
		t.Fatal("sibling was not cancelled")
	}
}

func TestFailFastPropagatesThroughLevels(t *testing.T) {
	boom := errors.New("deep failure")

	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		sp.Spawn("level-1", func(ctx context.Context, sp jobtree.Spawner) error {
			sp.Spawn("level-2", func(ctx context.Context, sp jobtree.Spawner) error {
				sp.Go("level-3", func(ctx context.Context) error {
					return boom
				})
				return nil
			})
			return nil
		})
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom to surface at root, got %v", err)
	}

	// The failure stays attributed to the job that raised it.
	info, ok := jobtree.JobOf(err)
	if !ok {
		t.Fatalf("expected JobError attribution, got %v", err)
	}
	if info.Name != "level-3" {
		t.Fatalf("expected attribution to level-3, got %q", info.Name)
	}
}

func TestSupervisePolicyIsolatesFailures(t *testing.T) {
	boom := errors.New("isolated failure")
	var siblingDone atomic.Bool
	var reported atomic.Int32

	var failing *jobtree.Job
	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		failing = sp.Go("failing", func(ctx context.Context) error {
			return boom
		})
		sp.Go("sibling", func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			siblingDone.Store(true)
			return nil
		})
	},
		jobtree.WithPolicy(jobtree.Supervise),
		jobtree.WithOnChildFailure(func(info jobtree.JobInfo, err error) {
			if info.Name == "failing" && errors.Is(err, boom) {
				reported.Add(1)
			}
		}),
	)

	if err != nil {
		t.Fatalf("supervised failure must not surface at root, got %v", err)
	}
	if !siblingDone.Load() {
		t.Fatal("sibling should have completed")
	}
	if got := reported.Load(); got != 1 {
		t.Fatalf("expected exactly one supervisor report, got %d", got)
	}

	// The failure is still visible on the handle itself.
	if !errors.Is(failing.Err(), boom) {
		t.Fatalf("expected boom on the failing handle, got %v", failing.Err())
	}
	if failing.State() != jobtree.StateCancelled {
		t.Fatalf("failed job must end Cancelled, got %s", failing.State())
	}
}

func TestExternalContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var job *jobtree.Job
	sc, sp := jobtree.New(ctx)
	job = sp.Go("blocked", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cancel()
	err := sc.Wait()

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.State() != jobtree.StateCancelled {
		t.Fatalf("expected Cancelled, got %s", job.State())
	}
	out, ok := job.Outcome()
	if !ok || !out.Cancelled() {
		t.Fatalf("expected cancelled outcome, got %+v ok=%v", out, ok)
	}
}

func TestWaitReportsAlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The children terminate as Cancelled immediately, so the scope can
	// resolve before any asynchronous cancellation propagation runs. The
	// cancellation must surface from Wait on every iteration regardless.
	for i := 0; i < 50; i++ {
		sc, sp := jobtree.New(ctx)
		j := sp.Go("noop", func(ctx context.Context) error {
			return ctx.Err()
		})

		if err := sc.Wait(); !errors.Is(err, context.Canceled) {
			t.Fatalf("iteration %d: expected context.Canceled, got %v", i, err)
		}
		if root := sc.Root(); root.State() != jobtree.StateCancelled {
			t.Fatalf("iteration %d: root ended %s over a cancelled child", i, root.State())
		}
		if j.State() != jobtree.StateCancelled {
			t.Fatalf("iteration %d: child ended %s", i, j.State())
		}
	}
}

func TestSpawnAfterWaitPanics(t *testing.T) {
	sc, sp := jobtree.New(context.Background())
	_ = sc.Wait()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from Spawn after Wait")
		}
	}()
	sp.Go("late", func(ctx context.Context) error { return nil })
}

func TestWaitIdempotent(t *testing.T) {
	boom := errors.New("boom")
	sc, sp := jobtree.New(context.Background())
	sp.Go("failing", func(ctx context.Context) error { return boom })

	err1 := sc.Wait()
	err2 := sc.Wait()
	if !errors.Is(err1, boom) || !errors.Is(err2, boom) {
		t.Fatalf("expected boom from both waits, got %v / %v", err1, err2)
	}
	if err1.Error() != err2.Error() {
		t.Fatal("repeated Wait must return the same result")
	}
}

func TestPanicReRaisedAtWait(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Wait to re-panic")
		}
		pe, ok := r.(*jobtree.PanicError)
		if !ok {
			t.Fatalf("expected *PanicError, got %T", r)
		}
		if pe.Value != "kaboom" {
			t.Fatalf("expected panic value kaboom, got %v", pe.Value)
		}
		if pe.Stack == "" {
			t.Fatal("expected captured stack")
		}
	}()

	_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		sp.Go("panicky", func(ctx context.Context) error {
			panic("kaboom")
		})
	})
}

func TestConcurrencyLimit(t *testing.T) {
	const limit = 3
	var current, peak atomic.Int32

	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		for i := 0; i < 20; i++ {
			sp.Go("job", func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}
	}, jobtree.WithLimit(limit))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := peak.Load(); p > limit {
		t.Fatalf("concurrency peak %d exceeded limit %d", p, limit)
	}
}

func TestScopeCounters(t *testing.T) {
	sc, sp := jobtree.New(context.Background())
	for i := 0; i < 5; i++ {
		sp.Go("job", func(ctx context.Context) error { return nil })
	}
	_ = sc.Wait()

	if got := sc.TotalSpawned(); got != 5 {
		t.Fatalf("expected 5 spawned, got %d", got)
	}
	if got := sc.ActiveJobs(); got != 0 {
		t.Fatalf("expected 0 active after Wait, got %d", got)
	}
}

func TestScopeWaitReturnsOnlyAfterSubtreeTerminal(t *testing.T) {
	var handles []*jobtree.Job

	err := jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
		for i := 0; i < 4; i++ {
			j := sp.Spawn(fmt.Sprintf("parent-%d", i), func(ctx context.Context, sp jobtree.Spawner) error {
				for k := 0; k < 3; k++ {
					sp.Go("leaf", func(ctx context.Context) error {
						time.Sleep(time.Duration(k+1) * time.Millisecond)
						return nil
					})
				}
				return nil
			})
			handles = append(handles, j)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// By the time Run returns, every handle in the tree is terminal.
	for _, h := range handles {
		if !h.State().Terminal() {
			t.Fatalf("job %s not terminal after Run: %s", h.Name(), h.State())
		}
		for _, c := range h.Children() {
			if !c.State().Terminal() {
				t.Fatalf("child %s not terminal after Run: %s", c.Name(), c.State())
			}
		}
	}
}

package jobtree_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baxromumarov/jobtree"
)

func TestParentWaitsForChildren(t *testing.T) {
	release := make(chan struct{})
	childRunning := make(chan struct{})

	sc, sp := jobtree.New(context.Background())

	parent := sp.Spawn("parent", func(ctx context.Context, sp jobtree.Spawner) error {
		sp.Go("child", func(ctx context.Context) error {
			close(childRunning)
			<-release
			return nil
		})
		// Parent body returns while the child is still blocked.
		return nil
	})

	<-childRunning

	// Body done, child pending: the parent must sit in Completing.
	deadline := time.After(time.Second)
	for parent.State() != jobtree.StateCompleting {
		select {
		case <-deadline:
			t.Fatalf("parent never reached Completing, state=%s", parent.State())
		case <-time.After(time.Millisecond):
		}
	}

	if parent.State().Terminal() {
		t.Fatal("parent terminal while child still running")
	}

	close(release)
	if err := sc.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parent.State() != jobtree.StateCompleted {
		t.Fatalf("expected Completed, got %s", parent.State())
	}
}

func TestOutcomeImmutableOnceTerminal(t *testing.T) {
	boom := errors.New("boom")

	sc, sp := jobtree.New(context.Background(), jobtree.WithPolicy(jobtree.Supervise))
	job := sp.Go("failing", func(ctx context.Context) error { return boom })
	_ = sc.Wait()

	first, ok := job.Outcome()
	if !ok {
		t.Fatal("expected terminal outcome")
	}
	for i := 0; i < 100; i++ {
		out, ok := job.Outcome()
		if !ok || out != first {
			t.Fatalf("outcome changed on read %d: %+v vs %+v", i, out, first)
		}
		if !errors.Is(job.Err(), boom) {
			t.Fatal("Err changed after terminal state")
		}
	}
}

func TestIdempotentStart(t *testing.T) {
	var runs atomic.Int32

	d := jobtree.NewDeferred(context.Background(), "once", func(ctx context.Context) (int, error) {
		runs.Add(1)
		time.Sleep(5 * time.Millisecond)
		return 1, nil
	})

	// Start repeatedly, concurrently, then also via Result.
	for i := 0; i < 10; i++ {
		go d.Start()
	}
	d.Start()
	v, err := d.Result()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("body ran %d times, want exactly 1", got)
	}

	// Starting a terminal job is a no-op too.
	d.Start()
	if got := runs.Load(); got != 1 {
		t.Fatalf("start on terminal job re-ran body: %d", got)
	}
}

func TestChildrenInSpawnOrder(t *testing.T) {
	sc, sp := jobtree.New(context.Background())

	parent := sp.Spawn("parent", func(ctx context.Context, sp jobtree.Spawner) error {
		for _, name := range []string{"first", "second", "third"} {
			sp.Go(name, func(ctx context.Context) error { return nil })
		}
		return nil
	})
	_ = sc.Wait()

	kids := parent.Children()
	if len(kids) != 3 {
		t.Fatalf("expected 3 children, got %d", len(kids))
	}
	for i, want := range []string{"first", "second", "third"} {
		if kids[i].Name() != want {
			t.Fatalf("child %d = %q, want %q", i, kids[i].Name(), want)
		}
	}
}

func TestJoinStartsLazyJob(t *testing.T) {
	var ran atomic.Bool
	d := jobtree.NewDeferred(context.Background(), "lazy", func(ctx context.Context) (string, error) {
		ran.Store(true)
		return "done", nil
	})

	if d.Job().State() != jobtree.StateNew {
		t.Fatalf("expected New before first join, got %s", d.Job().State())
	}
	if ran.Load() {
		t.Fatal("body ran before Join")
	}

	if err := d.Job().Join(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran.Load() {
		t.Fatal("Join did not start the job")
	}
}

func TestJobIdentity(t *testing.T) {
	sc, sp := jobtree.New(context.Background())
	a := sp.Go("a", func(ctx context.Context) error { return nil })
	b := sp.Go("b", func(ctx context.Context) error { return nil })
	_ = sc.Wait()

	if a.ID() == b.ID() {
		t.Fatal("job IDs must be unique")
	}
	if a.Info().Name != "a" || b.Info().Name != "b" {
		t.Fatalf("unexpected infos: %+v %+v", a.Info(), b.Info())
	}
}

func TestTerminalOutcomeReadableWithoutJoin(t *testing.T) {
	sc, sp := jobtree.New(context.Background())
	j := sp.Go("quick", func(ctx context.Context) error { return nil })

	<-j.Done()
	out, ok := j.Outcome()
	if !ok || out.Kind != jobtree.OutcomeSuccess {
		t.Fatalf("expected success outcome after Done, got %+v ok=%v", out, ok)
	}
	_ = sc.Wait()
}

package jobtree

// Scheduler decides where job bodies run. The runtime hands it the
// job's run function; the scheduler must execute it exactly once, on
// whatever goroutine it chooses. The default scheduler starts one
// goroutine per job; [Pool] multiplexes bodies over fixed workers.
//
// Job resolution is event-driven, so a scheduler never needs to block a
// worker to let a parent wait for its children.
type Scheduler interface {
	Schedule(run func())
}

// goScheduler is the default goroutine-per-job scheduler.
type goScheduler struct{}

func (goScheduler) Schedule(run func()) {
	go run()
}

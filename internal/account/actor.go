package account

import (
	"github.com/daemonp/ajax2mqtt/internal/types"
)

const actorQueueSize = 64

// spaceActor owns one space. Every read and write of the space runs on its
// task queue, so the push pipeline and the snapshot reconciler can never
// interleave on the same hub.
type spaceActor struct {
	space *types.Space
	tasks chan func()
	done  chan struct{}
}

func newSpaceActor(space *types.Space) *spaceActor {
	a := &spaceActor{
		space: space,
		tasks: make(chan func(), actorQueueSize),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *spaceActor) run() {
	defer close(a.done)
	for task := range a.tasks {
		task()
	}
}

// enqueue schedules a task. Tasks run in submission order.
func (a *spaceActor) enqueue(task func()) {
	a.tasks <- task
}

// view runs fn on the actor and waits for it, so callers observe a state
// that includes every previously queued write.
func (a *spaceActor) view(fn func(*types.Space)) {
	done := make(chan struct{})
	a.tasks <- func() {
		fn(a.space)
		close(done)
	}
	<-done
}

// stop drains the queue and waits for the goroutine to exit. Nothing may
// be enqueued afterwards.
func (a *spaceActor) stop() {
	close(a.tasks)
	<-a.done
}

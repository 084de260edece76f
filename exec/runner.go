package exec

import (
	"github.com/gomlx/graphopt/internal/workerspool"
)

// Runner is the scheduling callback the executor hands node computations to.
// It decides where (and how concurrently) scheduled work runs.
//
// Sleeping/Awake bracket sections where a running work item blocks waiting
// for another one (rendezvous receive), so bounded runners can lend the
// blocked slot and a single-worker pool cannot deadlock against itself.
type Runner interface {
	// Schedule queues work for execution. It may run the work before
	// returning (inline runners) or hand it to another goroutine.
	Schedule(work func())

	// Sleeping tells the runner the calling work item is about to block.
	Sleeping()

	// Awake reverses Sleeping.
	Awake()
}

// NewInlineRunner returns a Runner that executes every work item on the
// goroutine that first called Schedule, in FIFO order, using an explicit
// queue rather than recursion -- safe for arbitrarily deep graphs.
//
// It is strictly sequential, so it must not be used for graphs whose nodes
// block on each other (Recv nodes): there is no second goroutine to unblock
// them.
func NewInlineRunner() Runner {
	return &inlineRunner{}
}

type inlineRunner struct {
	queue   []func()
	running bool
}

func (r *inlineRunner) Schedule(work func()) {
	r.queue = append(r.queue, work)
	if r.running {
		return
	}
	r.running = true
	defer func() { r.running = false }()
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		next()
	}
}

func (r *inlineRunner) Sleeping() {}
func (r *inlineRunner) Awake()    {}

// poolRunner schedules work on a Device's worker pool, see Device.PoolRunner.
type poolRunner struct {
	pool *workerspool.Pool
}

func (r poolRunner) Schedule(work func()) { r.pool.WaitToStart(work) }
func (r poolRunner) Sleeping()            { r.pool.WorkerIsAsleep() }
func (r poolRunner) Awake()               { r.pool.WorkerRestarted() }

package flowgraph

import (
	"runtime"
	"sync"
)

// Pool is a fixed-width worker pool draining a FIFO queue of jobs, the Go
// realization of §4.1's worker pool: a buffered channel receive replaces
// the condition-variable wait, and Shutdown lets queued work drain before
// workers exit. No priorities, no work stealing, no affinity.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// NewPool starts width workers (default runtime.GOMAXPROCS(0) when width
// is non-positive) draining a queue of the given capacity (default width*4).
func NewPool(width, queueCapacity int) *Pool {
	if width <= 0 {
		width = runtime.GOMAXPROCS(0)
	}
	if queueCapacity <= 0 {
		queueCapacity = width * 4
	}
	p := &Pool{jobs: make(chan func(), queueCapacity)}
	p.wg.Add(width)
	for i := 0; i < width; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// SubmitTask schedules f to run on some worker and returns a Task for its
// result. It fails fast with a Resource error if the pool is shutting down.
// It is a package-level generic function, not a method, since Go methods
// cannot carry their own type parameters.
func SubmitTask[T any](p *Pool, f func() ComputeResult[T]) *Task[T] {
	task := NewTask[T]()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		task.Fulfil(Failed[T](NewErrorState(ErrorResource, "pool is shutting down", "")))
		return task
	}
	p.mu.Unlock()

	p.jobs <- func() {
		task.Fulfil(f())
	}
	return task
}

// Shutdown closes the job queue so workers drain then exit, and blocks
// until every worker has exited. Submitting after Shutdown always fails
// with a Resource error.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

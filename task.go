package flowgraph

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Task is a single-producer/single-consumer one-shot future over a
// ComputeResult. done plays the role of the fulfilled flag plus memory
// fence: closing a channel is itself an acquire/release synchronization
// point under the Go memory model, so no separate atomic flag is needed.
type Task[T any] struct {
	done chan struct{}
	once sync.Once

	mu           sync.Mutex
	result       ComputeResult[T]
	continuation func(ComputeResult[T])
}

// NewTask returns an unfulfilled task.
func NewTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Resolved returns a task that is already fulfilled with result.
func Resolved[T any](result ComputeResult[T]) *Task[T] {
	t := NewTask[T]()
	t.Fulfil(result)
	return t
}

// Fulfil transitions the task to fulfilled exactly once; later calls are
// no-ops. Any registered continuation is invoked exactly once, from
// whichever goroutine wins the fulfilment race.
func (t *Task[T]) Fulfil(result ComputeResult[T]) {
	t.once.Do(func() {
		t.mu.Lock()
		t.result = result
		cont := t.continuation
		close(t.done)
		t.mu.Unlock()
		if cont != nil {
			cont(result)
		}
	})
}

// OnFulfilled registers a continuation invoked exactly once when the task is
// fulfilled. If the task is already fulfilled, the continuation runs
// synchronously and immediately.
func (t *Task[T]) OnFulfilled(fn func(ComputeResult[T])) {
	t.mu.Lock()
	select {
	case <-t.done:
		result := t.result
		t.mu.Unlock()
		fn(result)
		return
	default:
	}
	t.continuation = fn
	t.mu.Unlock()
}

// Get blocks until the task is fulfilled or ctx is done, whichever comes
// first. A cancelled ctx synthesizes a Timeout ErrorState rather than
// returning ctx.Err() directly, so callers always see a ComputeResult.
func (t *Task[T]) Get(ctx context.Context) ComputeResult[T] {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result
	case <-ctx.Done():
		return Failed[T](NewErrorState(ErrorTimeout, ctx.Err().Error(), ""))
	}
}

// Await is the suspension-friendly counterpart to Get, identical in this
// goroutine-based realization since a channel receive is itself the
// cooperative suspension point.
func (t *Task[T]) Await(ctx context.Context) ComputeResult[T] {
	return t.Get(ctx)
}

// computeGroup coalesces concurrent duplicate compute calls. Per the
// resolved Open Question, two calls coalesce iff they share both node name
// and requested precision level; calls at different levels always run
// independently.
type computeGroup struct {
	g singleflight.Group
}

func newComputeGroup() *computeGroup {
	return &computeGroup{}
}

func (c *computeGroup) do(key string, fn func() (any, error)) (any, error) {
	v, err, _ := c.g.Do(key, fn)
	return v, err
}

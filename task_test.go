package flowgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskGetBlocksUntilFulfilled(t *testing.T) {
	task := NewTask[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		task.Fulfil(Ok(7))
	}()

	v, err := task.Get(context.Background()).Unwrap()
	if err != nil || v != 7 {
		t.Fatalf("expected (7, nil), got (%v, %v)", v, err)
	}
}

func TestTaskFulfilOnceOnly(t *testing.T) {
	task := NewTask[int]()
	task.Fulfil(Ok(1))
	task.Fulfil(Ok(2))

	v, err := task.Get(context.Background()).Unwrap()
	if err != nil || v != 1 {
		t.Fatalf("expected the first fulfil to win, got (%v, %v)", v, err)
	}
}

func TestTaskGetTimesOutWithCancelledContext(t *testing.T) {
	task := NewTask[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := task.Get(ctx)
	if !result.IsError() || result.Err.Kind != ErrorTimeout {
		t.Fatalf("expected a Timeout error, got %+v", result)
	}
}

func TestTaskOnFulfilledRunsImmediatelyIfAlreadyDone(t *testing.T) {
	task := Resolved(Ok(42))

	var got int
	task.OnFulfilled(func(r ComputeResult[int]) {
		got = r.Value
	})
	if got != 42 {
		t.Fatalf("expected continuation to run synchronously, got %v", got)
	}
}

func TestTaskOnFulfilledRunsExactlyOnceOnFulfil(t *testing.T) {
	task := NewTask[int]()
	var calls int32
	task.OnFulfilled(func(r ComputeResult[int]) {
		atomic.AddInt32(&calls, 1)
	})

	task.Fulfil(Ok(1))
	task.Fulfil(Ok(2))

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected the continuation to run exactly once, ran %d times", calls)
	}
}

func TestComputeGroupCoalescesConcurrentCalls(t *testing.T) {
	group := newComputeGroup()
	var running int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			group.do("n@0", func() (any, error) {
				n := atomic.AddInt32(&running, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return 99, nil
			})
		}()
	}
	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("expected calls sharing a key to coalesce into one execution, saw %d concurrent", maxConcurrent)
	}
}

func TestComputeGroupDifferentKeysRunIndependently(t *testing.T) {
	group := newComputeGroup()
	v1, err := group.do("n@0", func() (any, error) { return 1, nil })
	if err != nil || v1 != 1 {
		t.Fatalf("expected (1, nil), got (%v, %v)", v1, err)
	}
	v2, err := group.do("n@1", func() (any, error) { return 2, nil })
	if err != nil || v2 != 2 {
		t.Fatalf("expected different levels to run independently, got (%v, %v)", v2, err)
	}
}

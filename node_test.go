package flowgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNodeComputeCacheHitSkipsComputeImpl(t *testing.T) {
	var calls int32
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		atomic.AddInt32(&calls, 1)
		return Ok(10)
	}))

	v1, err := n.Compute(context.Background(), 0).Get(context.Background()).Unwrap()
	if err != nil || v1 != 10 {
		t.Fatalf("expected (10, nil), got (%v, %v)", v1, err)
	}
	// A computed value sits in the store's pending list until a merge folds
	// it into the level the store lookup reads.
	n.MergeUpdates()
	v2, err := n.Compute(context.Background(), 0).Get(context.Background()).Unwrap()
	if err != nil || v2 != 10 {
		t.Fatalf("expected cache hit to return (10, nil), got (%v, %v)", v2, err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected ComputeImpl to run exactly once, ran %d times", calls)
	}
}

func TestNodeComputeOutOfRangePrecision(t *testing.T) {
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		return Ok(1)
	}))
	if err := n.SetPrecisionRange(2, 3); err != nil {
		t.Fatalf("unexpected error setting precision range: %v", err)
	}

	result := n.Compute(context.Background(), 8).Get(context.Background())
	if !result.IsError() || result.Err.Kind != ErrorPrecision || result.Err.SourceNode != "n" {
		t.Fatalf("expected a Precision error sourced at n, got %+v", result)
	}
	if _, ok := n.store.Get(8); ok {
		t.Fatalf("expected no value stored at the rejected level")
	}
}

func TestNodeComputeWrapsPanicAsComputationError(t *testing.T) {
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		panic("boom")
	}))

	result := n.Compute(context.Background(), 0).Get(context.Background())
	if !result.IsError() || result.Err.Kind != ErrorComputation || result.Err.SourceNode != "n" {
		t.Fatalf("expected a Computation error sourced at n, got %+v", result)
	}
}

func TestNodeComputeConsultsGraphErrorTableFirst(t *testing.T) {
	var calls int32
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		atomic.AddInt32(&calls, 1)
		return Ok(1)
	}))
	g := NewGraph[int]()
	if err := g.AddNode(n); err != nil {
		t.Fatalf("unexpected error adding node: %v", err)
	}
	g.recordError("n", NewErrorState(ErrorPrecision, "upstream bad", "upstream"))

	result := n.Compute(context.Background(), 0).Get(context.Background())
	if !result.IsError() || result.Err.SourceNode != "upstream" {
		t.Fatalf("expected the recorded graph error to short-circuit compute, got %+v", result)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected ComputeImpl to never run once an error is recorded")
	}
}

func TestNodeComputeFiresCallbacksInOrder(t *testing.T) {
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		return Ok(3)
	}))

	var order []int
	var mu sync.Mutex
	n.AddCompletionCallback(func(r ComputeResult[int]) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	n.AddCompletionCallback(func(r ComputeResult[int]) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	if _, err := n.Compute(context.Background(), 0).Get(context.Background()).Unwrap(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected callbacks to fire in insertion order, got %v", order)
	}
}

func TestNodeComputeConcurrentDuplicatesCoalesce(t *testing.T) {
	var calls int32
	n := NewNode[int]("n", 4, 0.1, ComputableFunc[int](func(ctx context.Context, level uint8) ComputeResult[int] {
		atomic.AddInt32(&calls, 1)
		// Keep the first call in flight long enough for the others to join it.
		time.Sleep(20 * time.Millisecond)
		return Ok(1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Compute(context.Background(), 2).Get(context.Background())
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected concurrent calls at the same level to coalesce, ComputeImpl ran %d times", calls)
	}
}

func TestNodeAdjustPrecisionClampsSilently(t *testing.T) {
	n := NewNode[int]("n", 4, 0.1, nil)
	if err := n.SetPrecisionRange(1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n.AdjustPrecision(10)
	if got := n.CurrentLevel(); got != 3 {
		t.Fatalf("expected AdjustPrecision to clamp to max 3, got %d", got)
	}
	n.AdjustPrecision(0)
	if got := n.CurrentLevel(); got != 1 {
		t.Fatalf("expected AdjustPrecision to clamp to min 1, got %d", got)
	}
}

func TestNodeSetPrecisionRangeValidation(t *testing.T) {
	n := NewNode[int]("n", 4, 0.1, nil)
	if err := n.SetPrecisionRange(3, 2); err == nil {
		t.Fatalf("expected an error when min exceeds max")
	}
	if err := n.SetPrecisionRange(0, 10); err == nil {
		t.Fatalf("expected an error when max exceeds the store's max depth")
	}
}

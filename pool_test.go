package flowgraph

import (
	"context"
	"testing"
)

func TestPoolSubmitTaskRunsJob(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Shutdown()

	task := SubmitTask(p, func() ComputeResult[int] { return Ok(5) })
	v, err := task.Get(context.Background()).Unwrap()
	if err != nil || v != 5 {
		t.Fatalf("expected (5, nil), got (%v, %v)", v, err)
	}
}

func TestPoolSubmitTaskFailsAfterShutdown(t *testing.T) {
	p := NewPool(1, 1)
	p.Shutdown()

	task := SubmitTask(p, func() ComputeResult[int] { return Ok(1) })
	result := task.Get(context.Background())
	if !result.IsError() || result.Err.Kind != ErrorResource {
		t.Fatalf("expected a Resource error after shutdown, got %+v", result)
	}
}

func TestPoolShutdownDrainsQueuedWork(t *testing.T) {
	p := NewPool(1, 8)

	tasks := make([]*Task[int], 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		tasks = append(tasks, SubmitTask(p, func() ComputeResult[int] { return Ok(i) }))
	}
	p.Shutdown()

	for i, task := range tasks {
		v, err := task.Get(context.Background()).Unwrap()
		if err != nil || v != i {
			t.Fatalf("expected queued task %d to drain before shutdown returns, got (%v, %v)", i, v, err)
		}
	}
}

func TestPoolShutdownIsIdempotent(t *testing.T) {
	p := NewPool(1, 1)
	p.Shutdown()
	p.Shutdown()
}

func TestPoolDefaultsWidthAndCapacity(t *testing.T) {
	p := NewPool(0, 0)
	defer p.Shutdown()

	task := SubmitTask(p, func() ComputeResult[int] { return Ok(1) })
	if _, err := task.Get(context.Background()).Unwrap(); err != nil {
		t.Fatalf("expected defaulted pool to still run jobs, got error %v", err)
	}
}

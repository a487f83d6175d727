package flowgraph

import "testing"

func TestWithPropagationAppendsNode(t *testing.T) {
	err := NewErrorState(ErrorPrecision, "bad", "A")
	propagated := err.WithPropagation("B")

	if len(propagated.PropagationPath) != 1 || propagated.PropagationPath[0] != "B" {
		t.Fatalf("expected propagation path [B], got %v", propagated.PropagationPath)
	}
	if len(err.PropagationPath) != 0 {
		t.Fatalf("original error must not be mutated, got %v", err.PropagationPath)
	}
}

func TestWithPropagationSkipsSource(t *testing.T) {
	err := NewErrorState(ErrorPrecision, "bad", "A")
	propagated := err.WithPropagation("A")

	if propagated != err {
		t.Fatalf("expected the same error back when node is the source")
	}
}

func TestWithPropagationSkipsDuplicate(t *testing.T) {
	err := NewErrorState(ErrorPrecision, "bad", "A").WithPropagation("B")
	again := err.WithPropagation("B")

	if len(again.PropagationPath) != 1 {
		t.Fatalf("expected propagation path to stay [B], got %v", again.PropagationPath)
	}
}

func TestComputeResultUnwrap(t *testing.T) {
	ok := Ok(42)
	v, err := ok.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("expected (42, nil), got (%v, %v)", v, err)
	}

	failed := Failed[int](NewErrorState(ErrorComputation, "boom", "n"))
	_, err = failed.Unwrap()
	if err == nil {
		t.Fatalf("expected an error")
	}
}

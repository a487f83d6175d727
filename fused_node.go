package flowgraph

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// fusedNodeImpl is the Computable a NodeFusion pass synthesizes: invoking
// each node of a linear chain in order and returning the last's value,
// mirroring the port's FusedNode::compute_impl.
type fusedNodeImpl[T comparable] struct {
	chain []*Node[T]
}

func (f *fusedNodeImpl[T]) ComputeImpl(ctx context.Context, level uint8) ComputeResult[T] {
	var last ComputeResult[T]
	for _, n := range f.chain {
		last = n.Compute(ctx, level).Get(ctx)
		if last.IsError() {
			return last
		}
	}
	return last
}

// fusedNodeName synthesizes a name that stays inspectable in logs and
// serialization without colliding with user-chosen names.
func fusedNodeName[T comparable](chain []*Node[T]) string {
	names := make([]string, len(chain))
	for i, n := range chain {
		names[i] = n.Name
	}
	return "fused:" + uuid.NewString()[:8] + ":" + strings.Join(names, ">")
}

// newFusedNode builds the replacement node for a fusion chain. Its
// precision window is the intersection of the chain's windows.
func newFusedNode[T comparable](chain []*Node[T]) *Node[T] {
	minLevel, maxLevel := chain[0].PrecisionRange()
	for _, n := range chain[1:] {
		lo, hi := n.PrecisionRange()
		if lo > minLevel {
			minLevel = lo
		}
		if hi < maxLevel {
			maxLevel = hi
		}
	}

	fused := NewNode[T](fusedNodeName(chain), maxLevel, chain[0].store.threshold, nil)
	fused.SetImpl(&fusedNodeImpl[T]{chain: chain})
	_ = fused.SetPrecisionRange(minLevel, maxLevel)
	return fused
}

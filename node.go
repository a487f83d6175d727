package flowgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Computable is the protocol a user node kind implements: the single method
// invoked on a fractal-store miss. Node.Compute does not hold the node
// mutex while the call runs, so concurrent Compute calls at different
// levels can run ComputeImpl at the same time (same-level calls in flight
// together are coalesced into one). Implementations must not recursively
// call their own node's Compute.
type Computable[T comparable] interface {
	ComputeImpl(ctx context.Context, level uint8) ComputeResult[T]
}

// ComputableFunc adapts a plain function to Computable, the way a one-line
// collaborator node is usually wired up in examples and tests.
type ComputableFunc[T comparable] func(ctx context.Context, level uint8) ComputeResult[T]

// ComputeImpl implements Computable.
func (f ComputableFunc[T]) ComputeImpl(ctx context.Context, level uint8) ComputeResult[T] {
	return f(ctx, level)
}

// Node is a single vertex of a Graph. Name is its graph-membership identity
// (unique within a graph by convention); InstanceID is a separate opaque
// identity used only for log/trace correlation, never for equality or
// lookup.
type Node[T comparable] struct {
	Name       string
	InstanceID InstanceID

	mu           sync.Mutex
	impl         Computable[T]
	store        *FractalStore[T]
	minLevel     uint8
	maxLevel     uint8
	currentLevel uint8
	callbacks    []func(ComputeResult[T])
	computeCount uint64
	lastAccess   time.Time

	groupOnce sync.Once
	group     *computeGroup

	graph *Graph[T] // non-owning back-reference, valid for the node's membership interval
}

// NewNode constructs a node with the given name, precision depth (clamped
// to 64), and fractal-store compression tolerance. impl may be nil and
// attached later with SetImpl.
func NewNode[T comparable](name string, maxPrecisionDepth uint8, compressionThreshold float64, impl Computable[T]) *Node[T] {
	if maxPrecisionDepth > 64 {
		maxPrecisionDepth = 64
	}
	return &Node[T]{
		Name:       name,
		InstanceID: uuid.NewString(),
		impl:       impl,
		store:      NewFractalStore[T](maxPrecisionDepth, compressionThreshold),
		minLevel:   0,
		maxLevel:   maxPrecisionDepth,
	}
}

// SetImpl attaches (or replaces) the node's Computable.
func (n *Node[T]) SetImpl(impl Computable[T]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.impl = impl
}

// SetPrecisionRange narrows the node's legal precision window. It fails
// with a Validation error if max exceeds the store's max depth or if
// min exceeds max.
func (n *Node[T]) SetPrecisionRange(min, max uint8) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if max > n.store.maxDepth {
		return NewErrorState(ErrorValidation,
			fmt.Sprintf("max level %d exceeds store max depth %d", max, n.store.maxDepth), n.Name)
	}
	if min > max {
		return NewErrorState(ErrorValidation,
			fmt.Sprintf("min level %d exceeds max level %d", min, max), n.Name)
	}
	n.minLevel = min
	n.maxLevel = max
	return nil
}

// AdjustPrecision clamps target silently into [minLevel, maxLevel] and
// updates currentLevel.
func (n *Node[T]) AdjustPrecision(target uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentLevel = clampU8(target, n.minLevel, n.maxLevel)
}

// CurrentLevel returns the node's last-adjusted precision level.
func (n *Node[T]) CurrentLevel() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentLevel
}

// PrecisionRange returns the node's current [min, max] window.
func (n *Node[T]) PrecisionRange() (min, max uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.minLevel, n.maxLevel
}

// MergeUpdates forwards to the fractal store's MergeAll.
func (n *Node[T]) MergeUpdates() {
	n.store.MergeAll()
}

// AddCompletionCallback appends a handler invoked, in insertion order, with
// the ComputeResult of every Compute call that produces a new result: a
// freshly computed value, a precision rejection, or a ComputeImpl failure.
// Store hits and error-table short-circuits do not invoke it.
func (n *Node[T]) AddCompletionCallback(f func(ComputeResult[T])) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, f)
}

// AccessStats reports the node's monotonic compute count and the time of
// its last compute, the real counters the compression optimization pass
// uses in place of a placeholder activity estimate.
func (n *Node[T]) AccessStats() (computeCount uint64, lastAccess time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.computeCount, n.lastAccess
}

func (n *Node[T]) setGraph(g *Graph[T]) {
	n.mu.Lock()
	n.graph = g
	n.mu.Unlock()
}

func (n *Node[T]) computeGroupFor() *computeGroup {
	n.groupOnce.Do(func() { n.group = newComputeGroup() })
	return n.group
}

// Compute is the core operation: Idle -> LookupErrorTable -> CheckPrecision
// -> Lookup -> (Hit | Miss -> ComputeImpl) -> Store/Propagate -> Callbacks
// -> Resolved.
func (n *Node[T]) Compute(ctx context.Context, level uint8) *Task[T] {
	n.mu.Lock()
	if n.graph != nil {
		if errState, ok := n.graph.getNodeError(n.Name); ok {
			n.mu.Unlock()
			return Resolved(Failed[T](errState))
		}
	}
	if level > n.maxLevel {
		callbacks := append([]func(ComputeResult[T]){}, n.callbacks...)
		n.mu.Unlock()
		result := Failed[T](NewErrorState(ErrorPrecision,
			fmt.Sprintf("level %d exceeds max level %d", level, n.maxLevel), n.Name))
		n.fireCallbacks(callbacks, result)
		return Resolved(result)
	}
	n.currentLevel = level
	if v, ok := n.store.Get(level); ok {
		n.mu.Unlock()
		return Resolved(Ok(v))
	}
	n.mu.Unlock()

	// Coalesce concurrent duplicate calls sharing (name, level); calls at a
	// different level are never coalesced with this one.
	key := fmt.Sprintf("%s@%d", n.Name, level)
	raw, _ := n.computeGroupFor().do(key, func() (any, error) {
		return n.computeImplSafe(ctx, level), nil
	})
	result := raw.(ComputeResult[T])

	if result.IsError() {
		propagated := result.Err.WithPropagation(n.Name)
		result = Failed[T](propagated)

		n.mu.Lock()
		callbacks := append([]func(ComputeResult[T]){}, n.callbacks...)
		n.mu.Unlock()
		n.fireCallbacks(callbacks, result)

		return Resolved(result)
	}

	n.mu.Lock()
	n.store.Store(result.Value, level)
	callbacks := append([]func(ComputeResult[T]){}, n.callbacks...)
	n.computeCount++
	n.lastAccess = time.Now()
	shouldMerge := n.computeCount%mergeThreshold == 0
	n.mu.Unlock()

	n.fireCallbacks(callbacks, result)
	if shouldMerge {
		n.store.MergeAll()
	}

	return Resolved(result)
}

// fireCallbacks invokes every completion callback, in insertion order,
// with result — success or failure. AddNode's internal callback is what
// records a failing result to the graph's error table and notifies
// observers, so this must run on both outcomes.
func (n *Node[T]) fireCallbacks(callbacks []func(ComputeResult[T]), result ComputeResult[T]) {
	for _, cb := range callbacks {
		cb(result)
	}
}

// computeImplSafe turns an uncaught panic from compute_impl into a
// Computation error sourced at this node.
func (n *Node[T]) computeImplSafe(ctx context.Context, level uint8) (result ComputeResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed[T](NewErrorState(ErrorComputation, fmt.Sprintf("panic: %v", r), n.Name))
		}
	}()

	n.mu.Lock()
	impl := n.impl
	n.mu.Unlock()
	if impl == nil {
		return Failed[T](NewErrorState(ErrorComputation, "node has no Computable attached", n.Name))
	}
	return impl.ComputeImpl(ctx, level)
}

func clampU8(v, min, max uint8) uint8 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

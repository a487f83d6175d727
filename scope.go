package flowgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m1gwings/treedrawer/tree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/flowgraph/flowgraph")

// graphMetrics holds the lazily-initialized OpenTelemetry instruments a
// Graph records compute/error counts to, following the
// metricsOnce-guarded, gracefully-degrading lazy-init pattern used for
// instrumenting DAG executors elsewhere in the example corpus.
type graphMetrics struct {
	computeCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
}

// Graph owns the set of nodes and edges, the cache, the thread pool
// reference, the ordered list of optimization passes, and an error table
// mapping node name to the first ErrorState recorded for it during the
// current Execute run.
type Graph[T comparable] struct {
	mu sync.RWMutex

	nodes    map[string]*Node[T]
	edges    *edgeIndex
	edgeList []Edge

	cache     *GraphCache[T]
	pool      *Pool
	passes    []OptimizationPass[T]
	observers []Observer[T]

	errMu    sync.RWMutex
	errTable map[string]*ErrorState

	poolManager *poolManager

	Logger *slog.Logger

	metricsOnce sync.Once
	metrics     *graphMetrics
}

// GraphOption configures a Graph at construction, following the
// functional-options pattern.
type GraphOption[T comparable] func(*Graph[T])

// WithCache attaches a pre-built GraphCache.
func WithCache[T comparable](cache *GraphCache[T]) GraphOption[T] {
	return func(g *Graph[T]) { g.cache = cache }
}

// WithPool attaches a pre-built worker pool instead of the default.
func WithPool[T comparable](pool *Pool) GraphOption[T] {
	return func(g *Graph[T]) { g.pool = pool }
}

// WithLogger overrides the graph's structured logger.
func WithLogger[T comparable](logger *slog.Logger) GraphOption[T] {
	return func(g *Graph[T]) { g.Logger = logger }
}

// WithObserver registers an execution observer at construction time.
func WithObserver[T comparable](obs Observer[T]) GraphOption[T] {
	return func(g *Graph[T]) { g.observers = append(g.observers, obs) }
}

// NewGraph creates a graph with a default worker pool and logger, applying
// any options.
func NewGraph[T comparable](opts ...GraphOption[T]) *Graph[T] {
	g := &Graph[T]{
		nodes:       make(map[string]*Node[T]),
		edges:       newEdgeIndex(),
		errTable:    make(map[string]*ErrorState),
		poolManager: newPoolManager(),
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pool == nil {
		g.pool = NewPool(0, 0)
	}
	return g
}

func (g *Graph[T]) ensureMetrics() *graphMetrics {
	g.metricsOnce.Do(func() {
		meter := otel.Meter("github.com/flowgraph/flowgraph")
		computeCounter, err := meter.Int64Counter("flowgraph.node.compute")
		if err != nil {
			g.Logger.Warn("failed to create compute counter", "error", err)
		}
		errorCounter, err := meter.Int64Counter("flowgraph.node.error")
		if err != nil {
			g.Logger.Warn("failed to create error counter", "error", err)
		}
		g.metrics = &graphMetrics{computeCounter: computeCounter, errorCounter: errorCounter}
	})
	return g.metrics
}

// AddNode inserts n into the node set, wires its parent pointer, and
// registers an internal completion callback that, on error, writes to the
// graph's error table under n's own name.
func (g *Graph[T]) AddNode(n *Node[T]) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.Name]; exists {
		return NewErrorState(ErrorValidation, fmt.Sprintf("node %q already exists", n.Name), n.Name)
	}

	n.setGraph(g)
	g.nodes[n.Name] = n
	n.AddCompletionCallback(func(result ComputeResult[T]) {
		if result.IsError() {
			g.recordError(n.Name, result.Err)
			for _, obs := range g.observers {
				obs.OnGraphError(n.Name, result.Err)
			}
		}
		for _, obs := range g.observers {
			obs.OnNodeComplete(n.Name, result)
		}
	})
	return nil
}

// RemoveNode removes all incident edges, clears the node's parent pointer,
// and erases its error table entry.
func (g *Graph[T]) RemoveNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return
	}
	g.edges.removeNode(name)
	delete(g.nodes, name)
	n.setGraph(nil)

	kept := g.edgeList[:0]
	for _, e := range g.edgeList {
		if e.From != name && e.To != name {
			kept = append(kept, e)
		}
	}
	g.edgeList = kept

	g.errMu.Lock()
	delete(g.errTable, name)
	g.errMu.Unlock()
}

// AddEdge rejects with a Validation error iff reachability from to back to
// from already exists under the current edge set (which would make the
// new edge close a cycle); otherwise it inserts the edge.
func (g *Graph[T]) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return NewErrorState(ErrorValidation, fmt.Sprintf("node %q not in graph", from), from)
	}
	if _, ok := g.nodes[to]; !ok {
		return NewErrorState(ErrorValidation, fmt.Sprintf("node %q not in graph", to), to)
	}
	if g.edges.reaches(to, from) {
		return NewErrorState(ErrorValidation, fmt.Sprintf("edge %s->%s would close a cycle", from, to), from)
	}

	g.edges.add(from, to)
	g.edgeList = append(g.edgeList, Edge{From: from, To: to})
	return nil
}

// GetIncomingEdges returns the edges whose head is name.
func (g *Graph[T]) GetIncomingEdges(name string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, 4)
	for _, from := range g.edges.incoming(name) {
		out = append(out, Edge{From: from, To: name})
	}
	return out
}

// GetOutgoingEdges returns the edges whose tail is name.
func (g *Graph[T]) GetOutgoingEdges(name string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, 4)
	for _, to := range g.edges.outgoing(name) {
		out = append(out, Edge{From: name, To: to})
	}
	return out
}

// GetOutputNodes returns every node with no outgoing edges.
func (g *Graph[T]) GetOutputNodes() []*Node[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node[T]
	for name, n := range g.nodes {
		if len(g.edges.outgoing(name)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// GetNodes returns every node currently in the graph.
func (g *Graph[T]) GetNodes() []*Node[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node[T], 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

func (g *Graph[T]) lookupNode(name string) (*Node[T], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	return n, ok
}

func (g *Graph[T]) sourceNodes() []*Node[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node[T]
	for name, n := range g.nodes {
		if len(g.edges.incoming(name)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// SetCachePolicy wraps policy into the graph's GraphCache, preserving any
// key function and metrics recorder already configured.
func (g *Graph[T]) SetCachePolicy(policy CachePolicy[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache == nil {
		g.cache = NewGraphCache[T](policy, nil, nil)
		return
	}
	g.cache = NewGraphCache[T](policy, g.cache.keyFunc, g.cache.metrics)
}

// SetCache replaces the graph's cache wholesale.
func (g *Graph[T]) SetCache(cache *GraphCache[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = cache
}

// Cache returns the graph's current cache, or nil if none is configured.
func (g *Graph[T]) Cache() *GraphCache[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cache
}

// GetThreadPool returns the graph's worker pool.
func (g *Graph[T]) GetThreadPool() *Pool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pool
}

// SetThreadPool replaces the graph's worker pool.
func (g *Graph[T]) SetThreadPool(pool *Pool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pool = pool
}

// AddOptimizationPass appends pass to the ordered pass list; Optimize runs
// passes in registration order.
func (g *Graph[T]) AddOptimizationPass(pass OptimizationPass[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.passes = append(g.passes, pass)
}

// AddObserver registers an execution observer.
func (g *Graph[T]) AddObserver(obs Observer[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, obs)
}

// Optimize runs every registered optimization pass in registration order.
func (g *Graph[T]) Optimize() {
	g.mu.RLock()
	passes := append([]OptimizationPass[T]{}, g.passes...)
	observers := append([]Observer[T]{}, g.observers...)
	g.mu.RUnlock()

	for _, pass := range passes {
		before := len(g.GetNodes())
		pass.Optimize(g)
		after := len(g.GetNodes())

		for _, obs := range observers {
			obs.OnOptimizationPass(pass.Name(), before, after)
		}
		g.Logger.Info("optimization pass applied",
			"pass", pass.Name(), "nodes_before", before, "nodes_after", after)
	}
}

// GetNodeError returns the error recorded for name, if any, after the most
// recent Execute.
func (g *Graph[T]) GetNodeError(name string) (*ErrorState, bool) {
	return g.getNodeError(name)
}

func (g *Graph[T]) getNodeError(name string) (*ErrorState, bool) {
	g.errMu.RLock()
	defer g.errMu.RUnlock()
	e, ok := g.errTable[name]
	return e, ok
}

// recordError writes err into the error table under nodeName, unless an
// error is already recorded there — the "first error to land on a node
// wins" propagation policy. It does not check that nodeName is in the graph.
func (g *Graph[T]) recordError(nodeName string, err *ErrorState) {
	if err == nil {
		return
	}
	g.errMu.Lock()
	defer g.errMu.Unlock()
	if _, exists := g.errTable[nodeName]; !exists {
		g.errTable[nodeName] = err
	}
}

// Execute runs the graph: optimization passes, then a dependency-respecting
// schedule over every node, then an error-propagation fixed point. Each
// node's recursion into its predecessors (executeNodeAsync) guarantees
// dependency order regardless of which node a given goroutine starts from;
// seeding from every node, not just sources, is what the original's
// `for (const auto& node : nodes_) execute_node(node, visited)` relies on
// to guarantee every node with no outgoing-error path ends up computed.
// Per-node errors are surfaced via GetNodeError and completion callbacks,
// not through Execute's own return value.
func (g *Graph[T]) Execute(ctx context.Context, level uint8) error {
	g.Optimize()

	g.errMu.Lock()
	g.errTable = make(map[string]*ErrorState)
	g.errMu.Unlock()

	ctx, span := tracer.Start(ctx, "flowgraph.execute")
	defer span.End()

	rc := newRunContext(ctx, g.Logger, span)
	span.SetAttributes(attribute.String("flowgraph.run_id", rc.runID), attribute.Int("flowgraph.level", int(level)))

	nodes := g.GetNodes()
	eg, egCtx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		eg.Go(func() error {
			g.executeNodeAsync(egCtx, rc, n, level)
			return nil
		})
	}
	_ = eg.Wait()

	g.propagateErrorsFixedPoint()

	rc.logger.Info("graph execution complete", "nodes", len(nodes))
	return nil
}

// executeNodeAsync is the recursive per-node scheduling step: mark
// visited, await every predecessor (merging their errors' propagation
// paths, not just the first one seen), re-check the error table for
// poisoning from a sibling branch, then await n.Compute.
func (g *Graph[T]) executeNodeAsync(ctx context.Context, rc *runContext, n *Node[T], level uint8) ComputeResult[T] {
	if !rc.markVisited(n.Name) {
		if errState, ok := g.getNodeError(n.Name); ok {
			return Failed[T](errState)
		}
		if v, ok := n.store.Get(level); ok {
			return Ok(v)
		}
	}

	var predErrors []*ErrorState
	for _, edge := range g.GetIncomingEdges(n.Name) {
		pred, ok := g.lookupNode(edge.From)
		if !ok {
			continue
		}
		predResult := g.executeNodeAsync(ctx, rc, pred, level)
		if predResult.IsError() {
			predErrors = append(predErrors, predResult.Err)
		}
	}
	if len(predErrors) > 0 {
		propagated := mergePropagationPaths(predErrors).WithPropagation(n.Name)
		g.recordError(n.Name, propagated)
		return Failed[T](propagated)
	}

	if errState, ok := g.getNodeError(n.Name); ok {
		return Failed[T](errState)
	}

	result := n.Compute(ctx, level).Get(ctx)

	metrics := g.ensureMetrics()
	if metrics != nil {
		if result.IsError() {
			if metrics.errorCounter != nil {
				metrics.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("node", n.Name)))
			}
		} else if metrics.computeCounter != nil {
			metrics.computeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("node", n.Name)))
		}
	}

	if result.IsError() {
		g.recordError(n.Name, result.Err)
		rc.logger.Warn("node compute failed", "node", n.Name, "error", result.Err.Error())
	} else {
		rc.logger.Debug("node compute complete", "node", n.Name, "level", level)
	}
	return result
}

// propagateErrorsFixedPoint repeatedly walks every node; if any of a
// node's predecessors has an entry in the error table and the node does
// not, it merges every erroring predecessor's propagation path, appends
// the node, and records the result. It stops when a full pass makes no
// changes.
func (g *Graph[T]) propagateErrorsFixedPoint() {
	for {
		changed := false
		for _, n := range g.GetNodes() {
			if _, has := g.getNodeError(n.Name); has {
				continue
			}
			var predErrors []*ErrorState
			for _, inEdge := range g.GetIncomingEdges(n.Name) {
				if predErr, ok := g.getNodeError(inEdge.From); ok {
					predErrors = append(predErrors, predErr)
				}
			}
			if len(predErrors) > 0 {
				g.recordError(n.Name, mergePropagationPaths(predErrors).WithPropagation(n.Name))
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// Visualize renders the dependency subtree reachable from root as ASCII
// art, for operator use in logs and the CLI's inspect subcommand. It has
// no bearing on round-trip correctness.
func (g *Graph[T]) Visualize(root string) (string, error) {
	if _, ok := g.lookupNode(root); !ok {
		return "", NewErrorState(ErrorValidation, fmt.Sprintf("node %q not in graph", root), root)
	}
	visited := make(map[string]bool)
	t := tree.NewTree(tree.NodeString(root))
	visited[root] = true
	g.visualizeNode(root, t, visited)
	return t.String(), nil
}

func (g *Graph[T]) visualizeNode(name string, t *tree.Tree, visited map[string]bool) {
	for _, edge := range g.GetOutgoingEdges(name) {
		child := t.AddChild(tree.NodeString(edge.To))
		if visited[edge.To] {
			continue
		}
		visited[edge.To] = true
		g.visualizeNode(edge.To, child, visited)
	}
}

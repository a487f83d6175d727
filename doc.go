// Package flowgraph provides a concurrent, typed computation-graph engine
// with a hierarchical per-node value store and a pluggable optimization
// pipeline.
//
// # Overview
//
// flowgraph organizes computation around three core concepts:
//
//  1. Nodes: typed units of computation with a fractal-precision value store
//  2. Graphs: the directed acyclic set of nodes and edges an executor runs
//  3. Optimization passes: graph rewrites applied before execution
//
// # Basic Usage
//
// Build a graph and wire nodes together:
//
//	g := flowgraph.NewGraph[float64]()
//
//	source := flowgraph.NewNode[float64]("source", 8, 0.01,
//	    flowgraph.ComputableFunc[float64](func(ctx context.Context, level uint8) flowgraph.ComputeResult[float64] {
//	        return flowgraph.Ok(1.0)
//	    }))
//	doubled := flowgraph.NewNode[float64]("doubled", 8, 0.01,
//	    flowgraph.ComputableFunc[float64](func(ctx context.Context, level uint8) flowgraph.ComputeResult[float64] {
//	        v, err := flowgraph.NewHandle(source).Get(ctx)
//	        if err != nil {
//	            return flowgraph.Failed[float64](flowgraph.NewErrorState(flowgraph.ErrorDependency, err.Error(), "doubled"))
//	        }
//	        return flowgraph.Ok(v * 2)
//	    }))
//
//	_ = g.AddNode(source)
//	_ = g.AddNode(doubled)
//	_ = g.AddEdge("source", "doubled")
//
//	_ = g.Execute(context.Background(), 0)
//	result, _ := doubled.Compute(context.Background(), 0).Get(context.Background()).Unwrap()
//
// # Optimization Passes
//
// Passes rewrite the graph before each Execute:
//
//	g.AddOptimizationPass(&flowgraph.DeadNodeElimination[float64]{})
//	g.AddOptimizationPass(&flowgraph.NodeFusion[float64]{})
//	g.AddOptimizationPass(flowgraph.NewCompressionOptimizationPass[float64]())
//	g.AddOptimizationPass(flowgraph.NewPrecisionPropagation[float64]())
//
// # Caching
//
// A GraphCache wraps a swappable eviction policy:
//
//	g.SetCachePolicy(flowgraph.NewLRUCachePolicy[float64](128))
//
// # Controllers
//
// A Handle provides read access to a node's values: Get computes on a
// store miss, while Peek reads the store without triggering a compute:
//
//	h := flowgraph.NewHandle(source)
//	val, err := h.Get(context.Background())
//	cached, ok := h.Peek(0)
//
// # Observers
//
// Observers receive node-completion, error, and optimization-pass
// notifications:
//
//	g.AddObserver(extensions.NewLoggingObserver[float64](logger))
//
// # Thread Safety
//
// Graph, Node, GraphCache, and Pool are safe for concurrent use. Two
// concurrent Compute calls on the same node at the same level are
// coalesced into a single underlying ComputeImpl invocation; calls at
// different levels are never coalesced.
package flowgraph

package flowgraph

// NodeFusion is the "linear-chain fusion" optimization pass — named
// NodeFusion in code to match the synthesized FusedNode terminology.
// Maximal chains of single-incoming/single-outgoing edges collapse into
// one fused node.
type NodeFusion[T comparable] struct{}

// Name returns the pass's name.
func (NodeFusion[T]) Name() string { return "node-fusion" }

// Optimize finds every maximal fusible chain and replaces each with a
// single fused node.
func (NodeFusion[T]) Optimize(g *Graph[T]) {
	visited := make(map[string]bool)
	var chains [][]*Node[T]

	for _, n := range g.GetNodes() {
		if visited[n.Name] {
			continue
		}
		// n continues the chain that starts upstream of it: grow that chain
		// from its head instead, so every chain found is maximal.
		if in := g.GetIncomingEdges(n.Name); len(in) == 1 && len(g.GetOutgoingEdges(in[0].From)) == 1 {
			continue
		}
		chain := buildFusionChain(g, n, visited)
		if len(chain) > 1 {
			chains = append(chains, chain)
		}
	}

	for _, chain := range chains {
		fuseChain(g, chain)
	}
}

// buildFusionChain grows a chain forward from n while the current node has
// exactly one outgoing edge and its successor has exactly one incoming
// edge, matching the port's build_chain recursion.
func buildFusionChain[T comparable](g *Graph[T], n *Node[T], visited map[string]bool) []*Node[T] {
	visited[n.Name] = true
	chain := []*Node[T]{n}

	outgoing := g.GetOutgoingEdges(n.Name)
	if len(outgoing) != 1 {
		return chain
	}
	next, ok := g.lookupNode(outgoing[0].To)
	if !ok || visited[next.Name] {
		return chain
	}
	if len(g.GetIncomingEdges(next.Name)) != 1 {
		return chain
	}
	return append(chain, buildFusionChain(g, next, visited)...)
}

// fuseChain replaces chain with a single fused node: the fused node
// inherits chain's first node's incoming edges and its last node's
// outgoing edges, then the original chain nodes are removed.
func fuseChain[T comparable](g *Graph[T], chain []*Node[T]) {
	fused := newFusedNode(chain)
	first, last := chain[0], chain[len(chain)-1]

	incoming := g.GetIncomingEdges(first.Name)
	outgoing := g.GetOutgoingEdges(last.Name)

	if err := g.AddNode(fused); err != nil {
		return
	}
	for _, edge := range incoming {
		_ = g.AddEdge(edge.From, fused.Name)
	}
	for _, edge := range outgoing {
		_ = g.AddEdge(fused.Name, edge.To)
	}
	for _, n := range chain {
		g.RemoveNode(n.Name)
	}
}

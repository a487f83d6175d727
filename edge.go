package flowgraph

// Edge is an immutable directed pair of node names. Values never flow
// through an edge; it exists purely for the executor's scheduling and for
// the graph's reachability queries. Both endpoints must belong to the same
// graph, enforced by Graph.AddEdge at insertion time.
type Edge struct {
	From string
	To   string
}

package flowgraph

import "encoding/json"

type serializedNode struct {
	Name string `json:"name"`
}

type serializedEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type serializedGraph struct {
	Nodes []serializedNode `json:"nodes"`
	Edges []serializedEdge `json:"edges"`
}

// Serialize renders g's node names and edge set as JSON. Round-trip
// preserves the node set (by name) and the edge set; it does not preserve
// cached values, fractal-store contents, or precision windows, which reset
// to defaults on load.
func (g *Graph[T]) Serialize() ([]byte, error) {
	nodes := g.GetNodes()
	out := serializedGraph{
		Nodes: make([]serializedNode, 0, len(nodes)),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, serializedNode{Name: n.Name})
	}

	g.mu.RLock()
	edges := append([]Edge{}, g.edgeList...)
	g.mu.RUnlock()

	out.Edges = make([]serializedEdge, 0, len(edges))
	for _, e := range edges {
		out.Edges = append(out.Edges, serializedEdge{From: e.From, To: e.To})
	}

	return json.Marshal(out)
}

// NodeFactory builds a fresh node for a given name during deserialization,
// since a node's Computable and store configuration cannot be recovered
// from its serialized form alone.
type NodeFactory[T comparable] func(name string) *Node[T]

// Deserialize clears g and reinstantiates its node and edge sets from data
// using factory to build a node per name. Edges whose endpoints fail to
// resolve, and nodes factory declines to build (returns nil), are dropped
// silently.
func (g *Graph[T]) Deserialize(data []byte, factory NodeFactory[T]) error {
	var in serializedGraph
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	g.mu.Lock()
	g.nodes = make(map[string]*Node[T])
	g.edges = newEdgeIndex()
	g.edgeList = nil
	g.mu.Unlock()

	g.errMu.Lock()
	g.errTable = make(map[string]*ErrorState)
	g.errMu.Unlock()

	for _, sn := range in.Nodes {
		node := factory(sn.Name)
		if node == nil {
			continue
		}
		_ = g.AddNode(node)
	}
	for _, se := range in.Edges {
		_ = g.AddEdge(se.From, se.To)
	}
	return nil
}

package flowgraph

// PrecisionPropagation back-propagates precision requirements from output
// nodes to their dependencies: each predecessor's required level starts at
// its successor's, nudges +/-1 based on whether the dependency currently
// carries a recorded error, and is clamped into the dependency's own
// [min, max] window.
type PrecisionPropagation[T comparable] struct {
	ErrorThreshold float64
}

// NewPrecisionPropagation builds a pass with the source's default error
// threshold of 0.001.
func NewPrecisionPropagation[T comparable]() *PrecisionPropagation[T] {
	return &PrecisionPropagation[T]{ErrorThreshold: 0.001}
}

// Name returns the pass's name.
func (PrecisionPropagation[T]) Name() string { return "precision-propagation" }

// Optimize runs the backward BFS over the graph and applies the resulting
// precision requirements.
func (p *PrecisionPropagation[T]) Optimize(g *Graph[T]) {
	outputs := g.GetOutputNodes()
	requirements := make(map[string]uint8, len(g.GetNodes()))
	queue := make([]*Node[T], 0, len(outputs))

	for _, n := range outputs {
		requirements[n.Name] = n.CurrentLevel()
		queue = append(queue, n)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentPrecision := requirements[current.Name]

		for _, edge := range g.GetIncomingEdges(current.Name) {
			dep, ok := g.lookupNode(edge.From)
			if !ok {
				continue
			}
			required := p.requiredPrecision(g, currentPrecision, dep)
			if existing, has := requirements[dep.Name]; !has || required > existing {
				requirements[dep.Name] = required
				queue = append(queue, dep)
			}
		}
	}

	for _, n := range g.GetNodes() {
		precision, ok := requirements[n.Name]
		if !ok {
			continue
		}
		minLv, maxLv := n.PrecisionRange()
		n.AdjustPrecision(clampU8(precision, minLv, maxLv))
	}
}

// requiredPrecision nudges targetPrecision by one level based on whether
// dependency currently carries a recorded error: a real stand-in for the
// source's analyze_error_history placeholder, which always returned a
// constant half-threshold value.
func (p *PrecisionPropagation[T]) requiredPrecision(g *Graph[T], targetPrecision uint8, dependency *Node[T]) uint8 {
	recentErrors := p.analyzeErrorHistory(g, dependency)
	minLv, maxLv := dependency.PrecisionRange()

	switch {
	case recentErrors > p.ErrorThreshold:
		required := targetPrecision + 1
		if required > maxLv {
			required = maxLv
		}
		return required
	case recentErrors < p.ErrorThreshold/2:
		if targetPrecision == minLv {
			return minLv
		}
		required := targetPrecision - 1
		if required < minLv {
			required = minLv
		}
		return required
	default:
		return targetPrecision
	}
}

// analyzeErrorHistory reports a high value when dependency currently has a
// recorded error in g's error table, and zero otherwise, a real signal in
// place of the source's constant placeholder.
func (p *PrecisionPropagation[T]) analyzeErrorHistory(g *Graph[T], dependency *Node[T]) float64 {
	if _, ok := g.getNodeError(dependency.Name); ok {
		return p.ErrorThreshold * 2
	}
	return 0
}

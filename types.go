package flowgraph

import "golang.org/x/exp/constraints"

// NodeValue is the constraint every node's element type T must satisfy.
// comparable lets a value key a GraphCache's underlying set (or its own
// equality-based difference check inside the fractal store) without the
// caller supplying anything extra; types whose natural equality is
// unsuitable as a cache key can still supply a KeyFunc to GraphCache.
type NodeValue interface {
	comparable
}

// Numeric is the union of integer and floating-point types. The fractal
// store does not use it: its arithmetic path (weighted mean, exponential
// moving average, decimal rounding on expand) is chosen by a runtime type
// switch over the predeclared int, uint and float types (toFloat), so
// named types built on them and uintptr take the non-arithmetic path
// (equality-based difference, winner-takes-all merge) like any other T.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// InstanceID is an opaque per-construction identity distinct from a node's
// graph-membership name, used only for log and trace correlation.
type InstanceID = string

package flowgraph

import "fmt"

// ErrorKind classifies why a node's computation did not produce a value.
type ErrorKind string

const (
	// ErrorComputation wraps a panic or failure surfaced from compute_impl.
	ErrorComputation ErrorKind = "computation"
	// ErrorPrecision marks a requested level outside a node's precision window.
	ErrorPrecision ErrorKind = "precision"
	// ErrorDependency marks an error inherited from a predecessor node.
	ErrorDependency ErrorKind = "dependency"
	// ErrorResource marks pool shutdown or empty-cache victim selection.
	ErrorResource ErrorKind = "resource"
	// ErrorTimeout is reserved for long-running compute_impl cancellation.
	ErrorTimeout ErrorKind = "timeout"
	// ErrorValidation marks graph invariant violations (cycle insertion,
	// precision-range misuse).
	ErrorValidation ErrorKind = "validation"
)

// ErrorState is the tagged error carried through a ComputeResult. It never
// crosses a component boundary as a panic or a thrown error; it is always
// returned as data.
type ErrorState struct {
	Kind            ErrorKind
	Message         string
	SourceNode      string
	PropagationPath []string
}

// NewErrorState builds an ErrorState whose source is the given node; the
// propagation path starts empty and grows as the error transits other nodes.
func NewErrorState(kind ErrorKind, message, sourceNode string) *ErrorState {
	return &ErrorState{
		Kind:       kind,
		Message:    message,
		SourceNode: sourceNode,
	}
}

func (e *ErrorState) Error() string {
	if len(e.PropagationPath) == 0 {
		return fmt.Sprintf("%s error at %q: %s", e.Kind, e.SourceNode, e.Message)
	}
	return fmt.Sprintf("%s error at %q: %s (propagated via %v)", e.Kind, e.SourceNode, e.Message, e.PropagationPath)
}

// WithPropagation returns a copy of e with node appended to its propagation
// path, unless node is already the error's source (a node never appends
// itself to the path of an error it originated) or already on the path,
// in which case e is returned unchanged.
func (e *ErrorState) WithPropagation(node string) *ErrorState {
	if e.SourceNode == node {
		return e
	}
	for _, p := range e.PropagationPath {
		if p == node {
			return e
		}
	}
	path := make([]string, len(e.PropagationPath), len(e.PropagationPath)+1)
	copy(path, e.PropagationPath)
	path = append(path, node)
	return &ErrorState{
		Kind:            e.Kind,
		Message:         e.Message,
		SourceNode:      e.SourceNode,
		PropagationPath: path,
	}
}

// mergePropagationPaths combines the errors observed from multiple
// erroring predecessors into one: the first error's Kind/Message/
// SourceNode is kept as the merged error's identity, and every
// predecessor's propagation path is unioned in first-seen order. Used
// where a node has more than one erroring predecessor (e.g. the two
// branches of a diamond), so the node downstream of both sees every
// intermediate node that observed the error, not just the first one
// checked.
func mergePropagationPaths(errs []*ErrorState) *ErrorState {
	primary := errs[0]
	path := make([]string, 0, len(primary.PropagationPath))
	seen := make(map[string]bool, len(primary.PropagationPath))
	for _, e := range errs {
		for _, node := range e.PropagationPath {
			if !seen[node] {
				seen[node] = true
				path = append(path, node)
			}
		}
	}
	return &ErrorState{
		Kind:            primary.Kind,
		Message:         primary.Message,
		SourceNode:      primary.SourceNode,
		PropagationPath: path,
	}
}

// ComputeResult is the sum type produced by a node's compute: either a value
// or an ErrorState, never both.
type ComputeResult[T any] struct {
	Value T
	Err   *ErrorState
}

// Ok builds a successful ComputeResult.
func Ok[T any](v T) ComputeResult[T] {
	return ComputeResult[T]{Value: v}
}

// Failed builds a failing ComputeResult.
func Failed[T any](err *ErrorState) ComputeResult[T] {
	return ComputeResult[T]{Err: err}
}

// IsError reports whether the result carries an error rather than a value.
func (r ComputeResult[T]) IsError() bool {
	return r.Err != nil
}

// Unwrap returns the value and a plain error, the shape most callers want.
func (r ComputeResult[T]) Unwrap() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

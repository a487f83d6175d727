// Package extensions collects optional Observer implementations for
// flowgraph.Graph that are not needed by the core package itself.
package extensions

import (
	"log/slog"

	"github.com/flowgraph/flowgraph"
)

// LoggingObserver logs every node completion, node error, and
// optimization pass through a structured logger.
type LoggingObserver[T comparable] struct {
	flowgraph.BaseObserver[T]
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer writing through logger.
func NewLoggingObserver[T comparable](logger *slog.Logger) *LoggingObserver[T] {
	return &LoggingObserver[T]{
		BaseObserver: flowgraph.BaseObserver[T]{ObserverName: "logging"},
		logger:       logger,
	}
}

// OnNodeComplete logs successful node completions at debug level.
func (o *LoggingObserver[T]) OnNodeComplete(node string, result flowgraph.ComputeResult[T]) {
	if result.IsError() {
		return
	}
	o.logger.Debug("node complete", "node", node)
}

// OnGraphError logs node errors at error level.
func (o *LoggingObserver[T]) OnGraphError(node string, err *flowgraph.ErrorState) {
	o.logger.Error("node error", "node", node, "kind", string(err.Kind), "message", err.Message)
}

// OnOptimizationPass logs each applied pass and its effect on node count.
func (o *LoggingObserver[T]) OnOptimizationPass(passName string, nodesBefore, nodesAfter int) {
	o.logger.Info("optimization pass", "pass", passName, "nodes_before", nodesBefore, "nodes_after", nodesAfter)
}

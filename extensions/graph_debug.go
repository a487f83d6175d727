package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/flowgraph/flowgraph"
)

// GraphDebugObserver logs a treedrawer visualization of the graph rooted
// at an error's source node whenever a node error is observed.
//
// Usage:
//
//	// Human-readable formatted output
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	obs := extensions.NewGraphDebugObserver(g, handler)
//
//	// Structured JSON logging
//	obs := extensions.NewGraphDebugObserver(g, slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent, for tests
//	obs := extensions.NewGraphDebugObserver(g, extensions.NewSilentHandler())
type GraphDebugObserver[T comparable] struct {
	flowgraph.BaseObserver[T]
	graph  *flowgraph.Graph[T]
	logger *slog.Logger
}

// NewGraphDebugObserver creates a debug observer bound to graph, logging
// through logHandler.
func NewGraphDebugObserver[T comparable](graph *flowgraph.Graph[T], logHandler slog.Handler) *GraphDebugObserver[T] {
	return &GraphDebugObserver[T]{
		BaseObserver: flowgraph.BaseObserver[T]{ObserverName: "graph-debug"},
		graph:        graph,
		logger:       slog.New(logHandler),
	}
}

// OnGraphError renders the dependency subtree rooted at err's source node
// and logs it alongside the error detail.
func (o *GraphDebugObserver[T]) OnGraphError(node string, err *flowgraph.ErrorState) {
	viz, vizErr := o.graph.Visualize(err.SourceNode)
	if vizErr != nil {
		viz = "(visualization unavailable: " + vizErr.Error() + ")"
	}
	o.logger.Error("dependency resolution error",
		"node", node,
		"source", err.SourceNode,
		"kind", string(err.Kind),
		"message", err.Message,
		"propagation_path", strings.Join(err.PropagationPath, ">"),
		"dependency_graph", viz,
	)
}

// SilentHandler is a slog.Handler that discards all log output. Useful
// for tests that don't want log noise.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler.
func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(context.Context, slog.Level) bool { return false }
func (h *SilentHandler) Handle(context.Context, slog.Record) error { return nil }
func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *SilentHandler) WithGroup(name string) slog.Handler { return h }

// HumanHandler formats log records for readable console output, giving
// GraphDebugObserver's dependency_graph attribute its own framed block
// instead of an inline key-value dump.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Message == "dependency resolution error" {
		return h.handleDependencyError(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleDependencyError(record slog.Record) error {
	var node, source, kind, message, path, graph string
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "node":
			node = a.Value.String()
		case "source":
			source = a.Value.String()
		case "kind":
			kind = a.Value.String()
		case "message":
			message = a.Value.String()
		case "propagation_path":
			path = a.Value.String()
		case "dependency_graph":
			graph = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Dependency Resolution Error"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Node: %s (source: %s, kind: %s)\n", node, source, kind); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Message: %s\n", message); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Propagation path: %s\n", path); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Dependency graph:\n%s\n", graph); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *HumanHandler) WithGroup(name string) slog.Handler       { return h }

package flowgraph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// runContext is the per-Execute()-run bookkeeping executeNodeAsync threads
// through the recursive schedule: a run ID for log/trace correlation, a
// child logger, the run's span, and the visited set. A node reached again
// after it was visited reuses its recorded error or stored value when it
// has one; otherwise it is computed again.
type runContext struct {
	runID  string
	ctx    context.Context
	logger *slog.Logger
	span   trace.Span

	mu      sync.Mutex
	visited map[string]bool
}

func newRunContext(ctx context.Context, logger *slog.Logger, span trace.Span) *runContext {
	runID := uuid.NewString()
	return &runContext{
		runID:   runID,
		ctx:     ctx,
		logger:  logger.With("run_id", runID),
		span:    span,
		visited: make(map[string]bool),
	}
}

// markVisited marks name visited, reporting whether this call was the one
// that did so (false means another goroutine already claimed it).
func (r *runContext) markVisited(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visited[name] {
		return false
	}
	r.visited[name] = true
	return true
}

func (r *runContext) isVisited(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visited[name]
}

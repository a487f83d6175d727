package flowgraph

import "sync"

// MetricsRecorder receives cache hit/miss/eviction events for scraping,
// typically backed by github.com/prometheus/client_golang counters/gauges.
// A nil recorder passed to NewGraphCache makes the cache metrics-free.
type MetricsRecorder interface {
	RecordHit()
	RecordMiss()
	RecordEviction()
	SetSize(n int)
}

// KeyFunc derives a cache key from a value, for element types T whose
// natural equality is unsuitable as a cache key directly (resolving the
// "non-hashable T" Open Question: require comparable, with KeyFunc as the
// escape hatch).
type KeyFunc[T any] func(T) any

// GraphCache wraps a CachePolicy and the set of currently cached values.
// All operations run under a mutex.
type GraphCache[T comparable] struct {
	mu      sync.Mutex
	policy  CachePolicy[T]
	keyFunc KeyFunc[T]
	byKey   map[any]T
	metrics MetricsRecorder
}

// NewGraphCache builds a GraphCache delegating eviction decisions to
// policy. keyFunc may be nil, in which case T's own equality is the cache
// key. metrics may be nil for a metrics-free cache.
func NewGraphCache[T comparable](policy CachePolicy[T], keyFunc KeyFunc[T], metrics MetricsRecorder) *GraphCache[T] {
	return &GraphCache[T]{
		policy:  policy,
		keyFunc: keyFunc,
		byKey:   make(map[any]T),
		metrics: metrics,
	}
}

func (c *GraphCache[T]) key(v T) any {
	if c.keyFunc != nil {
		return c.keyFunc(v)
	}
	return v
}

// Store inserts v, evicting per policy if the cache is full. The cache's
// size never exceeds its policy's MaxSize after Store returns.
func (c *GraphCache[T]) Store(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(v)
	if _, exists := c.byKey[k]; exists {
		c.policy.OnAccess(v)
		return nil
	}

	if !c.policy.ShouldCache(v) {
		victim, err := c.policy.SelectVictim()
		if err != nil {
			return err
		}
		delete(c.byKey, c.key(victim))
		if c.metrics != nil {
			c.metrics.RecordEviction()
		}
	}

	c.byKey[k] = v
	c.policy.OnInsert(v)
	if c.metrics != nil {
		c.metrics.SetSize(len(c.byKey))
	}
	return nil
}

// Get reports whether a value keyed the same way as v is cached,
// notifying the policy of the access on a hit.
func (c *GraphCache[T]) Get(v T) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(v)
	found, ok := c.byKey[k]
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordMiss()
		}
		var zero T
		return zero, false
	}
	c.policy.OnAccess(found)
	if c.metrics != nil {
		c.metrics.RecordHit()
	}
	return found, true
}

// Size returns the number of entries currently cached.
func (c *GraphCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

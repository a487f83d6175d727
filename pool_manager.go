package flowgraph

import "sync"

// poolManager pools the short-lived start-slice and visited-set that
// DeadNodeElimination's reachability walk uses on every run, following the
// Acquire/Release idiom and hit/miss accounting of the library's original
// object-pooling module.
type poolManager struct {
	stringSlicePool sync.Pool
	visitedSetPool  sync.Pool
	metrics         poolMetrics
}

// poolMetrics tracks pool usage statistics.
type poolMetrics struct {
	mu                sync.RWMutex
	stringSliceHits   uint64
	stringSliceMisses uint64
	visitedSetHits    uint64
	visitedSetMisses  uint64
}

// newPoolManager creates a pool manager with initialized pools.
func newPoolManager() *poolManager {
	return &poolManager{
		stringSlicePool: sync.Pool{
			New: func() any { return make([]string, 0, 16) },
		},
		visitedSetPool: sync.Pool{
			New: func() any { return make(map[string]bool, 16) },
		},
	}
}

// acquireStringSlice gets a zero-length string slice from the pool or
// allocates a new one.
func (pm *poolManager) acquireStringSlice() []string {
	s, ok := pm.stringSlicePool.Get().([]string)
	if !ok {
		pm.metrics.mu.Lock()
		pm.metrics.stringSliceMisses++
		pm.metrics.mu.Unlock()
		return make([]string, 0, 16)
	}
	pm.metrics.mu.Lock()
	pm.metrics.stringSliceHits++
	pm.metrics.mu.Unlock()
	return s[:0]
}

// releaseStringSlice returns a string slice to the pool.
func (pm *poolManager) releaseStringSlice(s []string) {
	if s == nil {
		return
	}
	pm.stringSlicePool.Put(s[:0]) //nolint:staticcheck
}

// acquireVisitedSet gets an empty visited-set from the pool or allocates a
// new one.
func (pm *poolManager) acquireVisitedSet() map[string]bool {
	m, ok := pm.visitedSetPool.Get().(map[string]bool)
	if !ok {
		pm.metrics.mu.Lock()
		pm.metrics.visitedSetMisses++
		pm.metrics.mu.Unlock()
		return make(map[string]bool, 16)
	}
	pm.metrics.mu.Lock()
	pm.metrics.visitedSetHits++
	pm.metrics.mu.Unlock()
	for k := range m {
		delete(m, k)
	}
	return m
}

// releaseVisitedSet returns a visited-set to the pool.
func (pm *poolManager) releaseVisitedSet(m map[string]bool) {
	if m == nil {
		return
	}
	pm.visitedSetPool.Put(m)
}

// Metrics returns a snapshot of the pool's hit/miss counters.
func (pm *poolManager) Metrics() (stringSliceHits, stringSliceMisses, visitedSetHits, visitedSetMisses uint64) {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()
	return pm.metrics.stringSliceHits, pm.metrics.stringSliceMisses, pm.metrics.visitedSetHits, pm.metrics.visitedSetMisses
}

package flowgraph

import (
	"math"
	"sort"
	"time"
	"unsafe"
)

// CompressionOptimizationPass estimates memory pressure and per-node
// activity, trims precision on inactive nodes, expands it on
// high-activity critical-path nodes when memory allows, and balances
// precision levels across parallel paths.
type CompressionOptimizationPass[T comparable] struct {
	MemoryThreshold   float64
	ActivityThreshold float64

	compressedOnce bool
}

// NewCompressionOptimizationPass builds a pass with the spec's default
// thresholds: 0.8 memory, 0.2 activity.
func NewCompressionOptimizationPass[T comparable]() *CompressionOptimizationPass[T] {
	return &CompressionOptimizationPass[T]{MemoryThreshold: 0.8, ActivityThreshold: 0.2}
}

// Name returns the pass's name.
func (p *CompressionOptimizationPass[T]) Name() string { return "compression-optimization" }

type memoryStats struct {
	totalMemory     uint64
	availableMemory uint64
	usageRatio      float64
}

type activityStats struct {
	rates   map[string]float64
	average float64
}

// Optimize runs the full compression pass over g.
func (p *CompressionOptimizationPass[T]) Optimize(g *Graph[T]) {
	nodes := g.GetNodes()
	if len(nodes) < 2 {
		return
	}

	mem := p.analyzeMemoryUsage(nodes)
	activity := p.analyzeActivity(nodes)

	if mem.usageRatio > p.MemoryThreshold || !p.compressedOnce {
		p.compressInactiveNodes(nodes, activity)
	}

	p.expandCriticalPathNodes(g, nodes, mem, activity)
	p.balanceParallelPaths(g, nodes)
}

func (p *CompressionOptimizationPass[T]) analyzeMemoryUsage(nodes []*Node[T]) memoryStats {
	const perNode = int64(1024 * 1024)
	total := int64(len(nodes)) * perNode
	available := total
	for _, n := range nodes {
		available -= int64(estimateNodeMemory[T](n.CurrentLevel()))
	}
	if available < 0 {
		available = 0
	}
	return memoryStats{
		totalMemory:     uint64(total),
		availableMemory: uint64(available),
		usageRatio:      1.0 - float64(available)/float64(total),
	}
}

func (p *CompressionOptimizationPass[T]) analyzeActivity(nodes []*Node[T]) activityStats {
	rates := make(map[string]float64, len(nodes))
	now := time.Now()
	var total float64
	for _, n := range nodes {
		rate := estimateNodeActivity(n, now)
		rates[n.Name] = rate
		total += rate
	}
	return activityStats{rates: rates, average: total / float64(len(nodes))}
}

// compressInactiveNodes decrements precision and force-merges every node
// whose activity falls below activityThreshold*average, ensuring at least
// one node is compressed per invocation by falling back to the
// least-active node otherwise.
func (p *CompressionOptimizationPass[T]) compressInactiveNodes(nodes []*Node[T], activity activityStats) {
	compressedCount := 0
	var leastActive *Node[T]
	leastScore := math.Inf(1)

	for _, n := range nodes {
		score := activity.rates[n.Name]
		if score < leastScore {
			leastScore = score
			leastActive = n
		}
		if score < p.ActivityThreshold*activity.average {
			if p.tryCompress(n) {
				compressedCount++
			}
		}
	}

	if compressedCount == 0 && leastActive != nil {
		p.tryCompress(leastActive)
	}
	p.compressedOnce = true
}

func (p *CompressionOptimizationPass[T]) tryCompress(n *Node[T]) bool {
	level := n.CurrentLevel()
	minLv, _ := n.PrecisionRange()
	if level <= minLv {
		return false
	}
	n.AdjustPrecision(level - 1)
	n.MergeUpdates()
	return true
}

// expandCriticalPathNodes raises precision on high-activity nodes with
// multiple dependents when the resulting memory usage still fits.
func (p *CompressionOptimizationPass[T]) expandCriticalPathNodes(g *Graph[T], nodes []*Node[T], mem memoryStats, activity activityStats) {
	if mem.usageRatio >= p.MemoryThreshold {
		return
	}

	var critical []*Node[T]
	for _, n := range nodes {
		rate := activity.rates[n.Name]
		if rate > activity.average*2.0 && len(g.GetOutgoingEdges(n.Name)) > 1 {
			critical = append(critical, n)
		}
	}
	sort.Slice(critical, func(i, j int) bool {
		return activity.rates[critical[i].Name] > activity.rates[critical[j].Name]
	})

	for _, n := range critical {
		level := n.CurrentLevel()
		_, maxLv := n.PrecisionRange()
		if level < maxLv && p.wouldFitInMemory(n, level+1, mem) {
			n.AdjustPrecision(level + 1)
		}
	}
}

func (p *CompressionOptimizationPass[T]) wouldFitInMemory(n *Node[T], newLevel uint8, mem memoryStats) bool {
	current := estimateNodeMemory[T](n.CurrentLevel())
	next := estimateNodeMemory[T](newLevel)
	if next <= current {
		return true
	}
	return mem.availableMemory >= next-current
}

// balanceParallelPaths groups outgoing siblings by their shared downstream
// endpoint and sets each group's members to the clamped mean of their
// current precision levels.
func (p *CompressionOptimizationPass[T]) balanceParallelPaths(g *Graph[T], nodes []*Node[T]) {
	for _, n := range nodes {
		outgoing := g.GetOutgoingEdges(n.Name)
		if len(outgoing) < 2 {
			continue
		}

		groups := make(map[string][]*Node[T])
		for _, edge := range outgoing {
			child, ok := g.lookupNode(edge.To)
			if !ok {
				continue
			}
			for _, endpoint := range findPathEndpoints(g, child) {
				groups[endpoint] = append(groups[endpoint], child)
			}
		}

		for _, members := range groups {
			balanceGroupPrecision(members)
		}
	}
}

func findPathEndpoints[T comparable](g *Graph[T], start *Node[T]) []string {
	visited := make(map[string]bool)
	var endpoints []string

	var dfs func(n *Node[T])
	dfs = func(n *Node[T]) {
		visited[n.Name] = true
		outgoing := g.GetOutgoingEdges(n.Name)
		if len(outgoing) == 0 {
			endpoints = append(endpoints, n.Name)
			return
		}
		for _, edge := range outgoing {
			if visited[edge.To] {
				continue
			}
			if next, ok := g.lookupNode(edge.To); ok {
				dfs(next)
			}
		}
	}
	dfs(start)
	return endpoints
}

func balanceGroupPrecision[T comparable](nodes []*Node[T]) {
	if len(nodes) == 0 {
		return
	}
	var total uint64
	minLv, maxLv := nodes[0].PrecisionRange()
	for _, n := range nodes {
		total += uint64(n.CurrentLevel())
		lo, hi := n.PrecisionRange()
		if lo > minLv {
			minLv = lo
		}
		if hi < maxLv {
			maxLv = hi
		}
	}
	target := clampU8(uint8(total/uint64(len(nodes))), minLv, maxLv)
	for _, n := range nodes {
		n.AdjustPrecision(target)
	}
}

func estimateNodeMemory[T any](level uint8) uint64 {
	var zero T
	return (uint64(1) << level) * uint64(unsafe.Sizeof(zero))
}

// estimateNodeActivity replaces the source's placeholder random activity
// level with a recency-weighted score derived from Node.AccessStats: more
// recent and more frequent computes score higher.
func estimateNodeActivity[T comparable](n *Node[T], now time.Time) float64 {
	count, last := n.AccessStats()
	var recency float64
	if !last.IsZero() {
		secondsSince := now.Sub(last).Seconds()
		if secondsSince < 0 {
			secondsSince = 0
		}
		recency = 1.0 / (1.0 + secondsSince)
	}
	return recency * (1.0 + math.Log1p(float64(count)))
}

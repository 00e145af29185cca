// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vectorindex

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kraklabs/codegraph/pkg/concurrent"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// HNSWConfig carries the standard HNSW construction/search parameters,
// keyed by entity.ID rather than a string id.
type HNSWConfig struct {
	M               int
	EfConstruction  int
	EfSearch        int
	LevelMultiplier float64
}

// DefaultHNSWConfig returns workable defaults for a mid-size project graph.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:               16,
		EfConstruction:  200,
		EfSearch:        100,
		LevelMultiplier: 1.0 / math.Log(16.0),
	}
}

type hnswNode struct {
	id         entity.ID
	vector     []float32
	level      int
	neighbors  [][]entity.ID
	tombstoned bool
	mu         sync.RWMutex
}

// hnswGraph is the mutable HNSW structure. It is held behind an RCU cell
// on HNSWIndex so Rebuild can swap in a freshly compacted graph without
// blocking concurrent Search calls against the graph that was live a
// moment ago.
type hnswGraph struct {
	mu         sync.RWMutex
	nodes      map[entity.ID]*hnswNode
	entryPoint entity.ID
	hasEntry   bool
	maxLevel   int
}

func newHNSWGraph() *hnswGraph {
	return &hnswGraph{nodes: make(map[entity.ID]*hnswNode)}
}

// HNSWIndex is an approximate nearest neighbor index using the
// Hierarchical Navigable Small World algorithm.
type HNSWIndex struct {
	config HNSWConfig

	dimMu      sync.Mutex
	dimensions int

	graph     *concurrent.RCU[*hnswGraph]
	tombCount atomic.Int64
}

// NewHNSWIndex creates an empty HNSW index. Dimensions are fixed on the
// first Add call.
func NewHNSWIndex(config HNSWConfig) *HNSWIndex {
	if config.M == 0 {
		config = DefaultHNSWConfig()
	}
	return &HNSWIndex{
		config: config,
		graph:  concurrent.NewRCU(newHNSWGraph()),
	}
}

func (h *HNSWIndex) Add(id entity.ID, vec []float32) error {
	h.dimMu.Lock()
	if h.dimensions == 0 {
		h.dimensions = len(vec)
	}
	dims := h.dimensions
	h.dimMu.Unlock()
	if err := checkDimensions(dims, len(vec)); err != nil {
		return err
	}

	g := h.graph.Load()
	normalized := normalize(vec)
	level := h.randomLevel()

	node := &hnswNode{
		id:        id,
		vector:    normalized,
		level:     level,
		neighbors: make([][]entity.ID, level+1),
	}
	for i := range node.neighbors {
		node.neighbors[i] = make([]entity.ID, 0, h.config.M)
	}

	g.mu.Lock()
	g.nodes[id] = node
	if !g.hasEntry {
		g.entryPoint = id
		g.hasEntry = true
		g.maxLevel = level
		g.mu.Unlock()
		return nil
	}
	ep := g.entryPoint
	epLevel := g.nodes[ep].level
	g.mu.Unlock()

	for l := epLevel; l > level; l-- {
		ep = h.searchLayerSingle(g, normalized, ep, l)
	}

	for l := min(level, epLevel); l >= 0; l-- {
		candidates := h.searchLayer(g, normalized, ep, h.config.EfConstruction, l)
		neighbors := h.selectNeighbors(g, normalized, candidates, h.config.M)
		node.neighbors[l] = neighbors

		for _, neighborID := range neighbors {
			g.mu.RLock()
			neighbor := g.nodes[neighborID]
			g.mu.RUnlock()
			if neighbor == nil {
				continue
			}
			neighbor.mu.Lock()
			if len(neighbor.neighbors) > l {
				if len(neighbor.neighbors[l]) < h.config.M {
					neighbor.neighbors[l] = append(neighbor.neighbors[l], id)
				} else {
					merged := append(append([]entity.ID{}, neighbor.neighbors[l]...), id)
					neighbor.neighbors[l] = h.selectNeighbors(g, neighbor.vector, merged, h.config.M)
				}
			}
			neighbor.mu.Unlock()
		}

		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	g.mu.Lock()
	if level > g.maxLevel {
		g.entryPoint = id
		g.maxLevel = level
	}
	g.mu.Unlock()
	return nil
}

// Remove tombstones id. The underlying graph structure is left intact
// (so in-flight Search calls keep working) until the next Rebuild
// compacts it away, per the tombstone-then-rebuild contract.
func (h *HNSWIndex) Remove(id entity.ID) {
	g := h.graph.Load()
	g.mu.RLock()
	node, ok := g.nodes[id]
	g.mu.RUnlock()
	if !ok || node.tombstoned {
		return
	}
	node.mu.Lock()
	node.tombstoned = true
	node.mu.Unlock()
	h.tombCount.Add(1)
}

func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, minSimilarity float64) ([]SearchResult, error) {
	h.dimMu.Lock()
	dims := h.dimensions
	h.dimMu.Unlock()
	if err := checkDimensions(dims, len(query)); err != nil {
		return nil, err
	}

	g := h.graph.Load()
	g.mu.RLock()
	empty := len(g.nodes) == 0
	g.mu.RUnlock()
	if empty {
		return []SearchResult{}, nil
	}

	normalized := normalize(query)
	g.mu.RLock()
	ep := g.entryPoint
	maxLevel := g.maxLevel
	g.mu.RUnlock()

	for l := maxLevel; l > 0; l-- {
		ep = h.searchLayerSingle(g, normalized, ep, l)
	}

	candidates := h.searchLayer(g, normalized, ep, h.config.EfSearch, 0)

	results := make([]SearchResult, 0, k)
	for _, candidateID := range candidates {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		g.mu.RLock()
		node := g.nodes[candidateID]
		g.mu.RUnlock()
		if node == nil {
			continue
		}
		node.mu.RLock()
		tombstoned := node.tombstoned
		vec := node.vector
		node.mu.RUnlock()
		if tombstoned {
			continue
		}

		similarity := dotProduct(normalized, vec)
		if similarity >= minSimilarity {
			results = append(results, SearchResult{ID: candidateID, Score: similarity})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Rebuild constructs a fresh graph from the currently live (non-
// tombstoned) vectors and swaps it in atomically, so a Search racing the
// rebuild observes either the whole old graph or the whole new one,
// never a partially built one.
func (h *HNSWIndex) Rebuild(ctx context.Context) error {
	old := h.graph.Load()

	old.mu.RLock()
	type liveVec struct {
		id  entity.ID
		vec []float32
	}
	live := make([]liveVec, 0, len(old.nodes))
	for id, n := range old.nodes {
		n.mu.RLock()
		if !n.tombstoned {
			live = append(live, liveVec{id: id, vec: append([]float32(nil), n.vector...)})
		}
		n.mu.RUnlock()
	}
	old.mu.RUnlock()

	fresh := NewHNSWIndex(h.config)
	fresh.dimensions = h.dimensions
	for _, lv := range live {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fresh.Add(lv.id, lv.vec); err != nil {
			return err
		}
	}

	h.graph.Store(fresh.graph.Load())
	h.tombCount.Store(0)
	return nil
}

// Dump returns every live (id, vector) pair, for persistence.
func (h *HNSWIndex) Dump() []Pair {
	g := h.graph.Load()
	g.mu.RLock()
	defer g.mu.RUnlock()
	pairs := make([]Pair, 0, len(g.nodes))
	for id, n := range g.nodes {
		n.mu.RLock()
		if !n.tombstoned {
			pairs = append(pairs, Pair{ID: id, Vector: append([]float32(nil), n.vector...)})
		}
		n.mu.RUnlock()
	}
	return pairs
}

func (h *HNSWIndex) Stats() Stats {
	g := h.graph.Load()
	g.mu.RLock()
	defer g.mu.RUnlock()
	live := 0
	for _, n := range g.nodes {
		n.mu.RLock()
		if !n.tombstoned {
			live++
		}
		n.mu.RUnlock()
	}
	return Stats{Live: live, Tombstoned: int(h.tombCount.Load()), Dimensions: h.dimensions}
}

func (h *HNSWIndex) searchLayerSingle(g *hnswGraph, query []float32, entryID entity.ID, level int) entity.ID {
	current := entryID
	g.mu.RLock()
	currentNode := g.nodes[current]
	g.mu.RUnlock()
	currentDist := 1.0 - dotProduct(query, currentNode.vector)

	for {
		changed := false
		g.mu.RLock()
		node := g.nodes[current]
		g.mu.RUnlock()
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()

		for _, neighborID := range neighbors {
			g.mu.RLock()
			neighbor := g.nodes[neighborID]
			g.mu.RUnlock()
			if neighbor == nil {
				continue
			}
			dist := 1.0 - dotProduct(query, neighbor.vector)
			if dist < currentDist {
				current = neighborID
				currentDist = dist
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return current
}

type hnswDistItem struct {
	id    entity.ID
	dist  float64
	isMax bool
}

type hnswDistHeap []hnswDistItem

func (dh hnswDistHeap) Len() int { return len(dh) }
func (dh hnswDistHeap) Less(i, j int) bool {
	if dh[i].isMax {
		return dh[i].dist > dh[j].dist
	}
	return dh[i].dist < dh[j].dist
}
func (dh hnswDistHeap) Swap(i, j int) { dh[i], dh[j] = dh[j], dh[i] }
func (dh *hnswDistHeap) Push(x interface{}) {
	*dh = append(*dh, x.(hnswDistItem))
}
func (dh *hnswDistHeap) Pop() interface{} {
	old := *dh
	n := len(old)
	x := old[n-1]
	*dh = old[0 : n-1]
	return x
}

func (h *HNSWIndex) searchLayer(g *hnswGraph, query []float32, entryID entity.ID, ef int, level int) []entity.ID {
	visited := map[entity.ID]bool{entryID: true}

	candidates := &hnswDistHeap{}
	heap.Init(candidates)
	results := &hnswDistHeap{}
	heap.Init(results)

	g.mu.RLock()
	entryNode := g.nodes[entryID]
	g.mu.RUnlock()
	entryDist := 1.0 - dotProduct(query, entryNode.vector)
	heap.Push(candidates, hnswDistItem{id: entryID, dist: entryDist, isMax: false})
	heap.Push(results, hnswDistItem{id: entryID, dist: entryDist, isMax: true})

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(hnswDistItem)
		if results.Len() >= ef {
			furthest := (*results)[0]
			if closest.dist > furthest.dist {
				break
			}
		}

		g.mu.RLock()
		node := g.nodes[closest.id]
		g.mu.RUnlock()
		if node == nil {
			continue
		}
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()

		for _, neighborID := range neighbors {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			g.mu.RLock()
			neighbor := g.nodes[neighborID]
			g.mu.RUnlock()
			if neighbor == nil {
				continue
			}
			dist := 1.0 - dotProduct(query, neighbor.vector)

			if results.Len() < ef || dist < (*results)[0].dist {
				heap.Push(candidates, hnswDistItem{id: neighborID, dist: dist, isMax: false})
				heap.Push(results, hnswDistItem{id: neighborID, dist: dist, isMax: true})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	resultList := make([]entity.ID, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item := heap.Pop(results).(hnswDistItem)
		resultList[i] = item.id
	}
	return resultList
}

func (h *HNSWIndex) selectNeighbors(g *hnswGraph, query []float32, candidates []entity.ID, m int) []entity.ID {
	if len(candidates) <= m {
		return candidates
	}
	type distNode struct {
		id   entity.ID
		dist float64
	}
	dists := make([]distNode, len(candidates))
	for i, cid := range candidates {
		g.mu.RLock()
		n := g.nodes[cid]
		g.mu.RUnlock()
		dists[i] = distNode{id: cid, dist: 1.0 - dotProduct(query, n.vector)}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	result := make([]entity.ID, m)
	for i := 0; i < m; i++ {
		result[i] = dists[i].id
	}
	return result
}

func (h *HNSWIndex) randomLevel() int {
	r := rand.Float64()
	return int(-math.Log(r) * h.config.LevelMultiplier)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

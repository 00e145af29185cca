// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vectorindex

import (
	"context"
	"sort"
	"sync"

	"github.com/kraklabs/codegraph/pkg/entity"
)

// FlatIndex is a brute-force cosine-similarity index: O(n) per search,
// exact rather than approximate. It serves as the small-project default
// and as a recall baseline to validate HNSWIndex against.
type FlatIndex struct {
	mu         sync.RWMutex
	vectors    map[entity.ID][]float32
	dimensions int
}

// NewFlatIndex creates an empty flat index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{vectors: make(map[entity.ID][]float32)}
}

func (f *FlatIndex) Add(id entity.ID, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimensions == 0 {
		f.dimensions = len(vec)
	}
	if err := checkDimensions(f.dimensions, len(vec)); err != nil {
		return err
	}
	f.vectors[id] = normalize(vec)
	return nil
}

func (f *FlatIndex) Remove(id entity.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
}

func (f *FlatIndex) Search(ctx context.Context, query []float32, k int, minSimilarity float64) ([]SearchResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := checkDimensions(f.dimensions, len(query)); err != nil {
		return nil, err
	}

	normalized := normalize(query)
	results := make([]SearchResult, 0, len(f.vectors))
	i := 0
	for id, vec := range f.vectors {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		i++
		score := dotProduct(normalized, vec)
		if score >= minSimilarity {
			results = append(results, SearchResult{ID: id, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Rebuild is a no-op for FlatIndex: there is no auxiliary graph structure
// to compact, Remove already frees the slot immediately.
func (f *FlatIndex) Rebuild(ctx context.Context) error { return nil }

func (f *FlatIndex) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{Live: len(f.vectors), Dimensions: f.dimensions}
}

// Dump returns every live (id, vector) pair, for persistence.
func (f *FlatIndex) Dump() []Pair {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pairs := make([]Pair, 0, len(f.vectors))
	for id, vec := range f.vectors {
		pairs = append(pairs, Pair{ID: id, Vector: append([]float32(nil), vec...)})
	}
	return pairs
}

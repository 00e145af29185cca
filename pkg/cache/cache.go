// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package cache implements three LFU-with-TTL caches: a node cache, an
// embedding cache, and a query-result cache. Backed by
// github.com/dgraph-io/ristretto/v2 rather than a hand-rolled map+TTL
// cache, since ristretto already implements the admission/eviction policy
// (TinyLFU) a size/memory-bound config would otherwise approximate by hand.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kraklabs/codegraph/pkg/entity"
)

// Config carries the sizing knobs ristretto actually exposes (ristretto
// does its own memory-bound admission; there is no separate cleanup
// interval to configure).
type Config struct {
	// MaxEntries is an estimate of the number of items expected to be
	// cached; ristretto sizes its internal counters off it
	// (NumCounters, per ristretto's own sizing guidance of 10x the
	// expected item count).
	MaxEntries int64
	// MaxCostBytes bounds the cache's total tracked cost (approximate
	// memory use).
	MaxCostBytes int64
	// DefaultTTL is applied to every Set call; zero means no expiry.
	DefaultTTL time.Duration
}

// DefaultConfig returns the default cache sizing: 10k entries, a 512 MiB
// cost budget, and a 24h TTL.
func DefaultConfig() Config {
	return Config{
		MaxEntries:   10_000,
		MaxCostBytes: 512 * 1024 * 1024,
		DefaultTTL:   24 * time.Hour,
	}
}

// Stats reports a cache's lookup counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int64
}

// HitRate reports the fraction of lookups that were hits, 0 when there
// have been no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func numCounters(maxEntries int64) int64 {
	if maxEntries <= 0 {
		return 1e6
	}
	return maxEntries * 10
}

// NodeCache caches fully-hydrated Node values by id.
type NodeCache struct {
	c   *ristretto.Cache[string, *entity.Node]
	ttl time.Duration
}

// NewNodeCache creates a node cache per cfg.
func NewNodeCache(cfg Config) (*NodeCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *entity.Node]{
		NumCounters: numCounters(cfg.MaxEntries),
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &NodeCache{c: c, ttl: cfg.DefaultTTL}, nil
}

// Get returns the cached node for id, if present and unexpired.
func (nc *NodeCache) Get(id entity.ID) (*entity.Node, bool) {
	return nc.c.Get(id.String())
}

// Set inserts or replaces the cached node for n.ID. cost is an
// approximate byte size, typically NodeCost(n) for callers that don't want
// to recompute it.
func (nc *NodeCache) Set(n *entity.Node, cost int64) {
	if nc.ttl > 0 {
		nc.c.SetWithTTL(n.ID.String(), n, cost, nc.ttl)
	} else {
		nc.c.Set(n.ID.String(), n, cost)
	}
}

// Invalidate evicts the cached entry for id. Called by the graph store on
// every successful add_node/update_node/remove_node, per the
// invalidation contract.
func (nc *NodeCache) Invalidate(id entity.ID) {
	nc.c.Del(id.String())
}

// Stats reports current hit/miss counters.
func (nc *NodeCache) Stats() Stats {
	m := nc.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), Entries: int64(m.KeysAdded() - m.KeysEvicted())}
}

// Close releases background goroutines ristretto spawns for the cache.
func (nc *NodeCache) Close() { nc.c.Close() }

// NodeCost estimates a node's in-cache size: struct overhead plus the
// name, content, and embedding payloads.
func NodeCost(n *entity.Node) int64 {
	cost := int64(64) // struct overhead estimate
	cost += int64(len(n.Name))
	cost += int64(len(n.Content))
	cost += int64(len(n.Embedding) * 4)
	return cost
}

// EmbeddingCache caches embedding vectors keyed by
// (node_id, model_id, content_hash), so re-indexing an unchanged node
// never recomputes its vector.
type EmbeddingCache struct {
	c   *ristretto.Cache[string, []float32]
	ttl time.Duration
}

// NewEmbeddingCache creates an embedding cache per cfg.
func NewEmbeddingCache(cfg Config) (*EmbeddingCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: numCounters(cfg.MaxEntries),
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{c: c, ttl: cfg.DefaultTTL}, nil
}

// EmbeddingKey builds the cache key for one (model, content) combination,
// so an unchanged node is never re-embedded after a no-op reparse.
func EmbeddingKey(modelID, contentHash string) string {
	return modelID + ":" + contentHash
}

func (ec *EmbeddingCache) Get(key string) ([]float32, bool) {
	return ec.c.Get(key)
}

func (ec *EmbeddingCache) Set(key string, vec []float32) {
	cost := int64(len(vec) * 4)
	if ec.ttl > 0 {
		ec.c.SetWithTTL(key, vec, cost, ec.ttl)
	} else {
		ec.c.Set(key, vec, cost)
	}
	ec.c.Wait()
}

func (ec *EmbeddingCache) Stats() Stats {
	m := ec.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), Entries: int64(m.KeysAdded() - m.KeysEvicted())}
}

func (ec *EmbeddingCache) Close() { ec.c.Close() }

// QueryCache caches serialized tool-executor results keyed by a query
// hash.
type QueryCache struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// NewQueryCache creates a query-result cache per cfg.
func NewQueryCache(cfg Config) (*QueryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters(cfg.MaxEntries),
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &QueryCache{c: c, ttl: cfg.DefaultTTL}, nil
}

func (qc *QueryCache) Get(key string) ([]byte, bool) {
	return qc.c.Get(key)
}

func (qc *QueryCache) Set(key string, value []byte) {
	cost := int64(len(value))
	if qc.ttl > 0 {
		qc.c.SetWithTTL(key, value, cost, qc.ttl)
	} else {
		qc.c.Set(key, value, cost)
	}
}

// Clear drops every cached query result. Called whenever the graph store
// commits a node add/update/remove: any such write can change the answer to
// any previously-cached query, so the whole query cache is invalidated
// rather than trying to track per-query dependencies.
func (qc *QueryCache) Clear() {
	qc.c.Clear()
}

func (qc *QueryCache) Stats() Stats {
	m := qc.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), Entries: int64(m.KeysAdded() - m.KeysEvicted())}
}

func (qc *QueryCache) Close() { qc.c.Close() }

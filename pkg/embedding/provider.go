// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package embedding implements the embedding provider contract: embed(text)
// -> vec[D], with an optional rerank pass. Every variant (LocalDeterministic,
// RemoteAPI, ChatRerank's ChatProvider backends) is chosen by configuration
// and exposed behind a narrow interface, never a type switch in calling
// code.
package embedding

import (
	"context"
	"time"

	"github.com/kraklabs/codegraph/pkg/cache"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// Provider is the capability every embedding variant must satisfy: every
// provider embeds; rerank is optional (checked with a type assertion to the
// Reranker interface at the call site, never a switch on a concrete
// provider type).
type Provider interface {
	// Embed produces one vector per input text, in order. Implementations
	// enforce their own max batch size internally and split as needed.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the fixed D this provider's vectors carry.
	Dimensions() int
	// ModelID identifies the model for embedding-cache keys
	// (node_id, model_id, content_hash).
	ModelID() string
}

// Reranker is the optional second capability a provider may support,
// implemented only by the ChatRerank variant.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Doc, topN int) ([]Scored, error)
}

// Doc is one candidate document handed to Rerank.
type Doc struct {
	ID   string
	Text string
}

// Scored is one reranked result.
type Scored struct {
	ID    string
	Score float64
}

// TruncationPolicy controls how an over-length input is shortened before
// embedding.
type TruncationPolicy string

const (
	TruncateRight TruncationPolicy = "truncate_right"
)

// Config is shared by every provider variant.
type Config struct {
	// Dimensions D is fixed for the life of a vector index; changing it
	// requires a full reindex (CODEGRAPH_EMBEDDING_DIM in the daemon config).
	Dimensions int
	// ModelID tags embedding-cache keys and vectors/meta.json.
	ModelID string
	// MaxBatchSize bounds how many texts one provider call embeds; larger
	// batches are split internally.
	MaxBatchSize int
	// MaxTokens bounds input length before truncation.
	MaxTokens int
	// Truncation selects the truncation policy; only TruncateRight is
	// implemented.
	Truncation TruncationPolicy
	// Normalize requests L2-normalized output vectors. pkg/vectorindex
	// also normalizes on insert, so this is a belt-and-suspenders knob for
	// providers whose native output is already close to unit norm.
	Normalize bool
	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration
}

// DefaultConfig returns sane defaults: 256 texts per batch, 8192 max
// tokens, truncate-right, normalized output, a 30s request timeout.
func DefaultConfig(dimensions int, modelID string) Config {
	return Config{
		Dimensions:     dimensions,
		ModelID:        modelID,
		MaxBatchSize:   256,
		MaxTokens:      8192,
		Truncation:     TruncateRight,
		Normalize:      true,
		RequestTimeout: 30 * time.Second,
	}
}

func truncate(text string, maxTokens int) string {
	// A token is approximated as 4 bytes; precise tokenization is
	// provider-specific and not worth a dependency here.
	maxBytes := maxTokens * 4
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	return text[:maxBytes]
}

// CachedProvider wraps a Provider with the per-node embedding cache, keyed
// by (node_id, model_id, content_hash), so unchanged content is never
// re-embedded.
type CachedProvider struct {
	Provider
	cache *cache.EmbeddingCache
}

// NewCachedProvider wraps p with c.
func NewCachedProvider(p Provider, c *cache.EmbeddingCache) *CachedProvider {
	return &CachedProvider{Provider: p, cache: c}
}

// EmbedNode embeds n's content, consulting the cache first by
// (node_id, model_id, content_hash). It never looks at n.Embedding: callers decide
// whether re-embedding is needed (e.g. content_hash changed).
func (cp *CachedProvider) EmbedNode(ctx context.Context, n *entity.Node) ([]float32, error) {
	key := n.ID.String() + ":" + cache.EmbeddingKey(cp.ModelID(), n.ContentHash())
	if cp.cache != nil {
		if v, ok := cp.cache.Get(key); ok {
			return v, nil
		}
	}
	vecs, err := cp.Embed(ctx, []string{n.Content})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	if cp.cache != nil {
		cp.cache.Set(key, vecs[0])
	}
	return vecs[0], nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
)

var semanticCodeSearchTool = Tool{
	Name:        "semantic_code_search",
	Description: "Ranks nodes by embedding similarity to a natural-language query, optionally reranked.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"k": {"type": "integer", "minimum": 1},
			"filter": {"type": "object", "properties": {"language": {"type": "string"}, "node_type": {"type": "string"}}}
		},
		"required": ["query", "k"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "object"}}`),
}

// SemanticCodeSearchArgs is the decoded input of semantic_code_search.
type SemanticCodeSearchArgs struct {
	Query  string        `json:"query"`
	K      int           `json:"k"`
	Filter *SearchFilter `json:"filter,omitempty"`
}

// SearchFilter narrows semantic_code_search results post-hoc, since the
// vector index itself carries no node metadata.
type SearchFilter struct {
	Language string `json:"language,omitempty"`
	NodeType string `json:"node_type,omitempty"`
}

// SemanticCodeSearchHit is one ranked result.
type SemanticCodeSearchHit struct {
	NodeID   string  `json:"node_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	FilePath string  `json:"file_path"`
	Line     uint32  `json:"line"`
}

// minSimilarityFloor is the default min_similarity semantic_code_search
// applies when the caller doesn't specify one: the cosine
// semantics allow negative scores; the floor drops negative-similarity
// matches, while small positive scores still pass.
const minSimilarityFloor = 0.0

// overfetchFactor widens the raw vector-index search so that post-filtering
// (by language/node_type) and an optional rerank still have k candidates to
// choose from.
const overfetchFactor = 4

func (e *Executor) semanticCodeSearch(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[SemanticCodeSearchArgs](input)
	if err != nil {
		return errResult(err)
	}
	if args.Query == "" {
		return errResult(cgerrors.SchemaViolation("query must not be empty"))
	}
	if args.K <= 0 {
		args.K = 10
	}
	if e.Embedder == nil || e.Vectors == nil {
		return okResult([]SemanticCodeSearchHit{})
	}

	cacheKey := searchCacheKey(args)
	if e.Cache != nil {
		if raw, ok := e.Cache.Get(cacheKey); ok {
			var cached []SemanticCodeSearchHit
			if json.Unmarshal(raw, &cached) == nil {
				return okResult(cached)
			}
		}
	}

	queryVec, err := e.Embedder.Embed(ctx, args.Query)
	if err != nil {
		return errResult(err)
	}

	raw, err := e.Vectors.Search(ctx, queryVec, args.K*overfetchFactor, minSimilarityFloor)
	if err != nil {
		return errResult(err)
	}

	hits := make([]SemanticCodeSearchHit, 0, len(raw))
	docs := make([]RerankDoc, 0, len(raw))
	nodesByID := make(map[string]*entity.Node, len(raw))
	for _, r := range raw {
		n, err := e.Store.GetNode(ctx, r.ID)
		if err != nil {
			continue // node removed after the vector record was indexed; skip rather than fail the whole search
		}
		if !matchesFilter(n, args.Filter) {
			continue
		}
		idStr := n.ID.String()
		nodesByID[idStr] = n
		hits = append(hits, SemanticCodeSearchHit{
			NodeID: idStr, Name: n.Name, Score: r.Score,
			FilePath: n.Location.FilePath, Line: n.Location.Line,
		})
		docs = append(docs, RerankDoc{ID: idStr, Text: n.Content})
		if len(hits) >= args.K && e.Reranker == nil {
			break
		}
	}

	if e.Reranker != nil && len(docs) > 0 {
		reranked, err := e.Reranker.Rerank(ctx, args.Query, docs, args.K)
		if err == nil {
			hits = hits[:0]
			for _, r := range reranked {
				n := nodesByID[r.ID]
				if n == nil {
					continue
				}
				hits = append(hits, SemanticCodeSearchHit{
					NodeID: r.ID, Name: n.Name, Score: r.Score,
					FilePath: n.Location.FilePath, Line: n.Location.Line,
				})
			}
		}
	}

	if len(hits) > args.K {
		hits = hits[:args.K]
	}

	if e.Cache != nil {
		if raw, err := json.Marshal(hits); err == nil {
			e.Cache.Set(cacheKey, raw)
		}
	}
	return okResult(hits)
}

// searchCacheKey builds the cache key from a hash of the query text (not
// of its embedding), k, and a hash of the filter, collapsed into one string since
// the cache itself is a flat key-value map.
func searchCacheKey(args SemanticCodeSearchArgs) string {
	sum := sha256.Sum256([]byte(args.Query))
	filterHash := "-"
	if args.Filter != nil {
		fsum := sha256.Sum256([]byte(args.Filter.Language + "\x00" + args.Filter.NodeType))
		filterHash = hex.EncodeToString(fsum[:8])
	}
	return fmt.Sprintf("semantic_code_search:%s:%d:%s", hex.EncodeToString(sum[:8]), args.K, filterHash)
}

func matchesFilter(n *entity.Node, f *SearchFilter) bool {
	if f == nil {
		return true
	}
	if f.Language != "" && (n.Language == nil || string(*n.Language) != f.Language) {
		return false
	}
	if f.NodeType != "" && (n.NodeType == nil || string(*n.NodeType) != f.NodeType) {
		return false
	}
	return true
}

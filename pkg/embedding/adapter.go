// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"

	"github.com/kraklabs/codegraph/pkg/tools"
)

// ToolsEmbedder adapts a Provider's batch Embed to the single-text Embed
// method pkg/tools.Embedder requires for query-time embedding.
type ToolsEmbedder struct {
	Provider Provider
}

func (a ToolsEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.Provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}

// ToolsReranker adapts a Reranker's Doc/Scored types to pkg/tools'
// RerankDoc/RerankResult types.
type ToolsReranker struct {
	Reranker Reranker
}

func (a ToolsReranker) Rerank(ctx context.Context, query string, docs []tools.RerankDoc, topN int) ([]tools.RerankResult, error) {
	in := make([]Doc, len(docs))
	for i, d := range docs {
		in[i] = Doc{ID: d.ID, Text: d.Text}
	}
	out, err := a.Reranker.Rerank(ctx, query, in, topN)
	if err != nil {
		return nil, err
	}
	results := make([]tools.RerankResult, len(out))
	for i, s := range out {
		results[i] = tools.RerankResult{ID: s.ID, Score: s.Score}
	}
	return results, nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ChatRerank implements Reranker by asking a chat-completion model to score
// each candidate document's relevance to the query, using ChatProvider's
// Chat shape (Messages in, a single assistant Message out) rather than a
// dedicated reranking API, since none of the wired LLM backends expose one.
type ChatRerank struct {
	provider ChatProvider
	model    string
}

// NewChatRerank builds a ChatRerank reranker backed by provider, using model
// (or the provider's default model if empty).
func NewChatRerank(provider ChatProvider, model string) *ChatRerank {
	return &ChatRerank{provider: provider, model: model}
}

type rerankScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Rerank scores docs against query in a single chat call and returns the
// topN by descending score. Docs the model omits from its response keep
// their original order, scored zero, after every scored doc.
func (c *ChatRerank) Rerank(ctx context.Context, query string, docs []Doc, topN int) ([]Scored, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nRate how relevant each candidate is to the query, from 0.0 (irrelevant) to 1.0 (perfectly relevant).\n", query)
	fmt.Fprintf(&sb, "Respond with a JSON array of {\"id\": <candidate id>, \"score\": <number>}, one entry per candidate, nothing else.\n\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "Candidate %s:\n%s\n\n", d.ID, truncate(d.Text, 512))
	}

	resp, err := c.provider.Chat(ctx, ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: "You are a precise relevance-ranking assistant. Always respond with valid JSON and nothing else."},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("chat rerank: %w", err)
	}

	scores, parseErr := parseRerankScores(resp.Message.Content)

	byID := make(map[string]float64, len(docs))
	order := make([]string, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = 0
		order = append(order, d.ID)
	}
	if parseErr == nil {
		for _, s := range scores {
			if _, ok := byID[s.ID]; ok {
				byID[s.ID] = s.Score
			}
		}
	}

	out := make([]Scored, 0, len(order))
	for _, id := range order {
		out = append(out, Scored{ID: id, Score: byID[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// parseRerankScores extracts the JSON array a ChatRerank prompt asks for,
// tolerating a model wrapping it in prose or a markdown code fence.
func parseRerankScores(content string) ([]rerankScore, error) {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in rerank response")
	}
	var scores []rerankScore
	if err := json.Unmarshal([]byte(content[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("decode rerank scores: %w", err)
	}
	return scores, nil
}

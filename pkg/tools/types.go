// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the tool executor: a uniform dispatcher
// exposing a fixed catalog of read-only graph/vector analyses to external
// callers (the agent/MCP layer). Each tool is one file: a Tool descriptor
// carrying its JSON input/output schema, a typed args struct, and a
// handler method on Executor that talks to pkg/store and pkg/vectorindex
// directly rather than through an HTTP boundary — that boundary belongs
// to the agent/MCP layer, not to this package.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
	"github.com/kraklabs/codegraph/pkg/vectorindex"
)

// DefaultTimeout is the per-call deadline applied when a caller does not
// supply one.
const DefaultTimeout = 30 * time.Second

// GraphReader is the subset of pkg/store.Store the tool executor depends
// on. Kept as an interface so tests can substitute a fake store without
// standing up Badger.
type GraphReader interface {
	GetNode(ctx context.Context, id entity.ID) (*entity.Node, error)
	FindByName(ctx context.Context, name string) ([]entity.ID, error)
	Neighbors(ctx context.Context, from entity.ID) ([]*entity.Edge, error)
	ShortestPath(ctx context.Context, from, to entity.ID) ([]entity.ID, error)
	AllNodes(ctx context.Context) ([]*entity.Node, error)
}

// VectorSearcher is the subset of pkg/vectorindex.Index semantic_code_search
// depends on.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int, minSimilarity float64) ([]vectorindex.SearchResult, error)
}

// Embedder produces the query-time vector for a natural-language search
// string, narrowed from pkg/embedding.Provider to the single method
// semantic_code_search needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker is the optional second pass semantic_code_search applies to its
// top candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []RerankDoc, topN int) ([]RerankResult, error)
}

// QueryCache is the optional whole-result cache semantic_code_search
// consults before touching the embedder or vector index, keyed by
// (hash of the query text, k, filter hash). pkg/cache.QueryCache satisfies
// this directly; narrowed here so this package doesn't depend on pkg/cache.
type QueryCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// RerankDoc is one candidate handed to a Reranker.
type RerankDoc struct {
	ID   string
	Text string
}

// RerankResult is one scored reranker output.
type RerankResult struct {
	ID    string
	Score float64
}

// Error is the tool executor's JSON error shape:
// {code, message, retryable}.
type Error = cgerrors.JSON

// Result is the envelope every tool call returns: exactly one of Output or
// Err is set.
type Result struct {
	Output json.RawMessage `json:"output,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// errResult builds a failed Result from a Go error, translating CodeGraph
// errors into the {code, message, retryable} shape and anything else into
// an opaque internal error.
func errResult(err error) Result {
	j := cgerrors.ToJSON(err)
	return Result{Err: &j}
}

func okResult(v any) Result {
	raw, err := json.Marshal(v)
	if err != nil {
		return errResult(cgerrors.SchemaViolation(err.Error()))
	}
	return Result{Output: raw}
}

// Tool describes one catalog entry: its name (contract),
// and its JSON input/output schemas, exposed to the agent/MCP layer so it
// can validate calls before dispatch.
type Tool struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
}

// Executor dispatches named tool calls against a GraphReader and
// VectorSearcher, honoring the fixed catalog.
type Executor struct {
	Store    GraphReader
	Vectors  VectorSearcher
	Embedder Embedder
	Reranker Reranker
	Cache    QueryCache
	Timeout  time.Duration
}

// New builds an Executor with the default per-call timeout.
func New(store GraphReader, vectors VectorSearcher, embedder Embedder) *Executor {
	return &Executor{Store: store, Vectors: vectors, Embedder: embedder, Timeout: DefaultTimeout}
}

// Catalog lists every tool the executor exposes; the names form the
// stable contract agent callers dispatch against.
func (e *Executor) Catalog() []Tool {
	return []Tool{
		semanticCodeSearchTool,
		getTransitiveDependenciesTool,
		getReverseDependenciesTool,
		traceCallChainTool,
		detectCircularDependenciesTool,
		calculateCouplingMetricsTool,
		getHubNodesTool,
		findComplexityHotspotsTool,
	}
}

// Execute dispatches name against input (already-decoded JSON), applying
// the per-call deadline and returning the {output}|{error} envelope.
// Unknown tool names are a logic-kind NotFound error, not a panic.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch name {
	case "semantic_code_search":
		return e.semanticCodeSearch(ctx, input)
	case "get_transitive_dependencies":
		return e.getTransitiveDependencies(ctx, input)
	case "get_reverse_dependencies":
		return e.getReverseDependencies(ctx, input)
	case "trace_call_chain":
		return e.traceCallChain(ctx, input)
	case "detect_circular_dependencies":
		return e.detectCircularDependencies(ctx, input)
	case "calculate_coupling_metrics":
		return e.calculateCouplingMetrics(ctx, input)
	case "get_hub_nodes":
		return e.getHubNodes(ctx, input)
	case "find_complexity_hotspots":
		return e.findComplexityHotspots(ctx, input)
	default:
		return errResult(cgerrors.NotFound("tool " + name))
	}
}

func decodeArgs[T any](input json.RawMessage) (T, error) {
	var v T
	if len(input) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		var zero T
		return zero, cgerrors.SchemaViolation(err.Error())
	}
	return v, nil
}

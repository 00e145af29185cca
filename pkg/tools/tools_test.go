// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
	"github.com/kraklabs/codegraph/pkg/vectorindex"
)

// fakeGraph is an in-memory GraphReader standing in for *store.Store,
// mirroring pkg/pipeline's fakeStore test fixture shape.
type fakeGraph struct {
	mu    sync.Mutex
	nodes map[entity.ID]*entity.Node
	edges map[entity.ID][]*entity.Edge
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: make(map[entity.ID]*entity.Node),
		edges: make(map[entity.ID][]*entity.Edge),
	}
}

func (f *fakeGraph) addNode(n *entity.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.ID] = n
}

func (f *fakeGraph) addEdge(e *entity.Edge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[e.From] = append(f.edges[e.From], e)
}

func (f *fakeGraph) GetNode(ctx context.Context, id entity.ID) (*entity.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, cgerrors.NotFound("node")
	}
	return n, nil
}

func (f *fakeGraph) FindByName(ctx context.Context, name string) ([]entity.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.ID
	for id, n := range f.nodes {
		if n.Name == name {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeGraph) Neighbors(ctx context.Context, from entity.ID) ([]*entity.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.Edge(nil), f.edges[from]...), nil
}

func (f *fakeGraph) ShortestPath(ctx context.Context, from, to entity.ID) ([]entity.ID, error) {
	return nil, nil
}

func (f *fakeGraph) AllNodes(ctx context.Context) ([]*entity.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	return out, nil
}

// fakeVectors is a trivial brute-force VectorSearcher over a fixed set of
// (id, vec) records, used so semantic_code_search tests don't need a real
// vectorindex.Index.
type fakeVectors struct {
	records []vectorindex.SearchResult
}

func (f *fakeVectors) Search(ctx context.Context, query []float32, k int, minSimilarity float64) ([]vectorindex.SearchResult, error) {
	out := append([]vectorindex.SearchResult(nil), f.records...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func node(name string, path string, line uint32) *entity.Node {
	nt := entity.NodeFunction
	lang := entity.LanguageGo
	return entity.NewNode("proj", name, &nt, &lang, entity.Location{FilePath: path, Line: line, Column: 1})
}

func newExecutor(g *fakeGraph, v VectorSearcher, emb Embedder) *Executor {
	return New(g, v, emb)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestCatalogListsEightTools(t *testing.T) {
	e := newExecutor(newFakeGraph(), nil, nil)
	names := make(map[string]bool)
	for _, tool := range e.Catalog() {
		names[tool.Name] = true
	}
	require.Len(t, names, 8)
	for _, want := range []string{
		"semantic_code_search",
		"get_transitive_dependencies",
		"get_reverse_dependencies",
		"trace_call_chain",
		"detect_circular_dependencies",
		"calculate_coupling_metrics",
		"get_hub_nodes",
		"find_complexity_hotspots",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestExecuteUnknownToolIsNotFound(t *testing.T) {
	e := newExecutor(newFakeGraph(), nil, nil)
	res := e.Execute(context.Background(), "no_such_tool", nil)
	require.Nil(t, res.Output)
	require.NotNil(t, res.Err)
	require.Equal(t, string(cgerrors.CodeNotFound), res.Err.Code)
}

// TestTransitiveDependencies exercises the classic A->B->C->D call chain:
// depth=2 stops at {B,C}, depth=3 reaches {B,C,D}.
func TestTransitiveDependencies(t *testing.T) {
	g := newFakeGraph()
	a, b, c, d := node("A", "a.go", 1), node("B", "b.go", 1), node("C", "c.go", 1), node("D", "d.go", 1)
	for _, n := range []*entity.Node{a, b, c, d} {
		g.addNode(n)
	}
	g.addEdge(&entity.Edge{From: a.ID, To: entity.NodeTarget(b.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: b.ID, To: entity.NodeTarget(c.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: c.ID, To: entity.NodeTarget(d.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)

	res := e.Execute(context.Background(), "get_transitive_dependencies", mustJSON(t, DepthArgs{
		NodeID: a.ID.String(), EdgeType: string(entity.EdgeCalls), Depth: 2,
	}))
	require.Nil(t, res.Err)
	var got []string
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.ElementsMatch(t, []string{b.ID.String(), c.ID.String()}, got)

	res = e.Execute(context.Background(), "get_transitive_dependencies", mustJSON(t, DepthArgs{
		NodeID: a.ID.String(), EdgeType: string(entity.EdgeCalls), Depth: 3,
	}))
	require.Nil(t, res.Err)
	got = nil
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.ElementsMatch(t, []string{b.ID.String(), c.ID.String(), d.ID.String()}, got)
}

func TestTransitiveDependenciesInvalidID(t *testing.T) {
	e := newExecutor(newFakeGraph(), nil, nil)
	res := e.Execute(context.Background(), "get_transitive_dependencies", mustJSON(t, DepthArgs{
		NodeID: "not-a-uuid", EdgeType: string(entity.EdgeCalls), Depth: 1,
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, string(cgerrors.CodeInvalidID), res.Err.Code)
}

func TestReverseDependencies(t *testing.T) {
	g := newFakeGraph()
	a, b, c := node("A", "a.go", 1), node("B", "b.go", 1), node("C", "c.go", 1)
	for _, n := range []*entity.Node{a, b, c} {
		g.addNode(n)
	}
	g.addEdge(&entity.Edge{From: a.ID, To: entity.NodeTarget(c.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: b.ID, To: entity.NodeTarget(c.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "get_reverse_dependencies", mustJSON(t, DepthArgs{
		NodeID: c.ID.String(), EdgeType: string(entity.EdgeCalls), Depth: 1,
	}))
	require.Nil(t, res.Err)
	var got []string
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.ElementsMatch(t, []string{a.ID.String(), b.ID.String()}, got)
}

func TestTraceCallChain(t *testing.T) {
	g := newFakeGraph()
	a, b, c := node("A", "a.go", 1), node("B", "b.go", 1), node("C", "c.go", 1)
	for _, n := range []*entity.Node{a, b, c} {
		g.addNode(n)
	}
	g.addEdge(&entity.Edge{From: a.ID, To: entity.NodeTarget(b.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: b.ID, To: entity.NodeTarget(c.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "trace_call_chain", mustJSON(t, TraceCallChainArgs{
		From: a.ID.String(), To: c.ID.String(), MaxDepth: 5,
	}))
	require.Nil(t, res.Err)
	var got []string
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Equal(t, []string{a.ID.String(), b.ID.String(), c.ID.String()}, got)
}

func TestTraceCallChainUnreachableReturnsEmpty(t *testing.T) {
	g := newFakeGraph()
	a, b := node("A", "a.go", 1), node("B", "b.go", 1)
	g.addNode(a)
	g.addNode(b)

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "trace_call_chain", mustJSON(t, TraceCallChainArgs{
		From: a.ID.String(), To: b.ID.String(), MaxDepth: 5,
	}))
	require.Nil(t, res.Err)
	var got []string
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Empty(t, got)
}

func TestDetectCircularDependencies(t *testing.T) {
	g := newFakeGraph()
	a, b, c := node("A", "a.go", 1), node("B", "b.go", 1), node("C", "c.go", 1)
	for _, n := range []*entity.Node{a, b, c} {
		g.addNode(n)
	}
	// A -> B -> A forms a cycle; C is isolated.
	g.addEdge(&entity.Edge{From: a.ID, To: entity.NodeTarget(b.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: b.ID, To: entity.NodeTarget(a.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "detect_circular_dependencies", mustJSON(t, ScopeArgs{}))
	require.Nil(t, res.Err)
	var got [][]string
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Len(t, got, 1)
	require.ElementsMatch(t, []string{a.ID.String(), b.ID.String()}, got[0])
}

func TestCalculateCouplingMetrics(t *testing.T) {
	g := newFakeGraph()
	a, b, c := node("A", "a.go", 1), node("B", "b.go", 1), node("C", "c.go", 1)
	for _, n := range []*entity.Node{a, b, c} {
		g.addNode(n)
	}
	g.addEdge(&entity.Edge{From: a.ID, To: entity.NodeTarget(b.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: c.ID, To: entity.NodeTarget(a.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "calculate_coupling_metrics", mustJSON(t, struct {
		NodeID string `json:"node_id"`
	}{NodeID: a.ID.String()}))
	require.Nil(t, res.Err)
	var got CouplingMetrics
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Equal(t, 1, got.FanIn)
	require.Equal(t, 1, got.FanOut)
	require.InDelta(t, 0.5, got.Instability, 1e-9)
}

func TestCalculateCouplingMetricsNotFound(t *testing.T) {
	g := newFakeGraph()
	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "calculate_coupling_metrics", mustJSON(t, struct {
		NodeID string `json:"node_id"`
	}{NodeID: entity.DeriveNodeID("p", "x.go", "missing", entity.NodeFunction, 1).String()}))
	require.NotNil(t, res.Err)
	require.Equal(t, string(cgerrors.CodeNotFound), res.Err.Code)
}

func TestGetHubNodesRanksByDegree(t *testing.T) {
	g := newFakeGraph()
	hub, leaf1, leaf2 := node("Hub", "hub.go", 1), node("Leaf1", "l1.go", 1), node("Leaf2", "l2.go", 1)
	for _, n := range []*entity.Node{hub, leaf1, leaf2} {
		g.addNode(n)
	}
	g.addEdge(&entity.Edge{From: hub.ID, To: entity.NodeTarget(leaf1.ID), EdgeType: entity.EdgeCalls})
	g.addEdge(&entity.Edge{From: hub.ID, To: entity.NodeTarget(leaf2.ID), EdgeType: entity.EdgeCalls})

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "get_hub_nodes", mustJSON(t, struct {
		K int `json:"k"`
	}{K: 1}))
	require.Nil(t, res.Err)
	var got []HubNode
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Len(t, got, 1)
	require.Equal(t, hub.ID.String(), got[0].NodeID)
	require.Equal(t, float64(2), got[0].Score)
}

func TestFindComplexityHotspots(t *testing.T) {
	g := newFakeGraph()
	hot, cold := node("Hot", "hot.go", 1), node("Cold", "cold.go", 1)
	hot.WithComplexity(42)
	cold.WithComplexity(1)
	g.addNode(hot)
	g.addNode(cold)

	e := newExecutor(g, nil, nil)
	res := e.Execute(context.Background(), "find_complexity_hotspots", mustJSON(t, struct {
		K int `json:"k"`
	}{K: 10}))
	require.Nil(t, res.Err)
	var got []ComplexityHotspot
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Len(t, got, 2)
	require.Equal(t, hot.ID.String(), got[0].NodeID)
}

// TestSemanticCodeSearchRanking checks that a query ranks the more
// relevant of two candidates strictly above the other.
func TestSemanticCodeSearchRanking(t *testing.T) {
	g := newFakeGraph()
	hashFn := node("hash_bytes", "hash.go", 1)
	csvFn := node("parse_csv_row", "csv.go", 1)
	g.addNode(hashFn)
	g.addNode(csvFn)

	vecs := &fakeVectors{records: []vectorindex.SearchResult{
		{ID: hashFn.ID, Score: 0.9},
		{ID: csvFn.ID, Score: 0.2},
	}}

	e := newExecutor(g, vecs, fakeEmbedder{})
	res := e.Execute(context.Background(), "semantic_code_search", mustJSON(t, SemanticCodeSearchArgs{
		Query: "hash a file", K: 2,
	}))
	require.Nil(t, res.Err)
	var got []SemanticCodeSearchHit
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Len(t, got, 2)
	require.Equal(t, hashFn.ID.String(), got[0].NodeID)
	require.Greater(t, got[0].Score, got[1].Score)
}

func TestSemanticCodeSearchEmptyQueryRejected(t *testing.T) {
	e := newExecutor(newFakeGraph(), &fakeVectors{}, fakeEmbedder{})
	res := e.Execute(context.Background(), "semantic_code_search", mustJSON(t, SemanticCodeSearchArgs{
		Query: "", K: 5,
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, string(cgerrors.CodeSchemaViolation), res.Err.Code)
}

func TestSemanticCodeSearchWithoutEmbedderReturnsEmpty(t *testing.T) {
	e := newExecutor(newFakeGraph(), nil, nil)
	res := e.Execute(context.Background(), "semantic_code_search", mustJSON(t, SemanticCodeSearchArgs{
		Query: "anything", K: 5,
	}))
	require.Nil(t, res.Err)
	var got []SemanticCodeSearchHit
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Empty(t, got)
}

func TestSemanticCodeSearchFilterByLanguage(t *testing.T) {
	g := newFakeGraph()
	goFn := node("go_fn", "a.go", 1)
	other := node("py_fn", "a.py", 1)
	py := entity.LanguagePython
	other.Language = &py
	g.addNode(goFn)
	g.addNode(other)

	vecs := &fakeVectors{records: []vectorindex.SearchResult{
		{ID: goFn.ID, Score: 0.8},
		{ID: other.ID, Score: 0.7},
	}}

	e := newExecutor(g, vecs, fakeEmbedder{})
	res := e.Execute(context.Background(), "semantic_code_search", mustJSON(t, SemanticCodeSearchArgs{
		Query: "q", K: 5, Filter: &SearchFilter{Language: "go"},
	}))
	require.Nil(t, res.Err)
	var got []SemanticCodeSearchHit
	require.NoError(t, json.Unmarshal(res.Output, &got))
	require.Len(t, got, 1)
	require.Equal(t, goFn.ID.String(), got[0].NodeID)
}

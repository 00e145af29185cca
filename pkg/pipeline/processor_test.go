// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
	"github.com/kraklabs/codegraph/pkg/parser"
	"github.com/kraklabs/codegraph/pkg/vectorindex"
)

// fakeStore is an in-memory FileStore + FailedFileLister for processor
// tests, standing in for *store.Store.
type fakeStore struct {
	mu    sync.Mutex
	nodes map[entity.ID]*entity.Node
	meta  map[string]*entity.FileMetadata
	edges []*entity.Edge
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: make(map[entity.ID]*entity.Node), meta: make(map[string]*entity.FileMetadata)}
}

func (f *fakeStore) AddNode(ctx context.Context, n *entity.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.ID] = n
	return nil
}

func (f *fakeStore) GetNode(ctx context.Context, id entity.ID) (*entity.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, cgerrors.NotFound("node")
	}
	return n, nil
}

func (f *fakeStore) RemoveNode(ctx context.Context, id entity.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, id)
	return nil
}

func (f *fakeStore) FindByName(ctx context.Context, name string) ([]entity.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []entity.ID
	for id, n := range f.nodes {
		if n.Name == name {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) AddEdge(ctx context.Context, e *entity.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, e)
	return nil
}

func (f *fakeStore) RemoveEdgesFrom(ctx context.Context, id entity.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.edges[:0]
	for _, e := range f.edges {
		if e.From != id {
			kept = append(kept, e)
		}
	}
	f.edges = kept
	return nil
}

func (f *fakeStore) PutFileMeta(ctx context.Context, m *entity.FileMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[m.Path] = m
	return nil
}

func (f *fakeStore) GetFileMeta(ctx context.Context, path string) (*entity.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[path]
	if !ok {
		return nil, cgerrors.NotFound("file_meta")
	}
	return m, nil
}

func (f *fakeStore) RemoveFileMeta(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.meta, path)
	return nil
}

func (f *fakeStore) FailedFiles(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for path, m := range f.meta {
		if m.IndexFailed {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	vectors map[entity.ID][]float32
}

func newFakeIndex() *fakeIndex { return &fakeIndex{vectors: make(map[entity.ID][]float32)} }

func (f *fakeIndex) Add(id entity.ID, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[id] = vec
	return nil
}
func (f *fakeIndex) Remove(id entity.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
}
func (f *fakeIndex) Search(ctx context.Context, query []float32, k int, minSimilarity float64) ([]vectorindex.SearchResult, error) {
	return nil, nil
}
func (f *fakeIndex) Rebuild(ctx context.Context) error { return nil }
func (f *fakeIndex) Stats() vectorindex.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return vectorindex.Stats{Live: len(f.vectors)}
}

type fakeEmbedder struct {
	fail bool
	dim  int
}

func (e *fakeEmbedder) EmbedNode(ctx context.Context, n *entity.Node) ([]float32, error) {
	if e.fail {
		return nil, cgerrors.EmbeddingProviderError(500, true, context.DeadlineExceeded)
	}
	return make([]float32, e.dim), nil
}

func writeGoFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestProcessor_UpsertThenNoOpOnUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir, "a.go", "package a\n\nfunc Foo() {}\n")

	pool, err := parser.NewPool("proj")
	require.NoError(t, err)

	st := newFakeStore()
	idx := newFakeIndex()
	proc := NewProcessor(st, idx, pool, &fakeEmbedder{dim: 4}, nil)

	ctx := context.Background()
	require.NoError(t, proc.processUpsert(ctx, FileEvent{Path: path, Change: Created}))

	meta, err := st.GetFileMeta(ctx, path)
	require.NoError(t, err)
	require.False(t, meta.IndexFailed)
	require.Greater(t, meta.NodeCount, 0)

	firstNodeCount := len(st.nodes)

	// Re-running against unchanged content must be a no-op: node count and
	// file_meta content_hash are unaffected.
	require.NoError(t, proc.processUpsert(ctx, FileEvent{Path: path, Change: Modified}))
	require.Len(t, st.nodes, firstNodeCount)
}

func TestProcessor_UpsertThenDeleteRemovesNodes(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir, "a.go", "package a\n\nfunc Foo() {}\n")

	pool, err := parser.NewPool("proj")
	require.NoError(t, err)

	st := newFakeStore()
	idx := newFakeIndex()
	proc := NewProcessor(st, idx, pool, &fakeEmbedder{dim: 4}, nil)

	ctx := context.Background()
	require.NoError(t, proc.processUpsert(ctx, FileEvent{Path: path, Change: Created}))
	require.NotEmpty(t, st.nodes)

	require.NoError(t, proc.processDelete(ctx, FileEvent{Path: path, Change: Deleted}))
	require.Empty(t, st.nodes)
	require.Empty(t, idx.vectors)

	_, err = st.GetFileMeta(ctx, path)
	require.Error(t, err)
}

func TestProcessor_EmbeddingFailureMarksIndexFailedButKeepsGraphWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir, "a.go", "package a\n\nfunc Foo() {}\n")

	pool, err := parser.NewPool("proj")
	require.NoError(t, err)

	st := newFakeStore()
	idx := newFakeIndex()
	proc := NewProcessor(st, idx, pool, &fakeEmbedder{dim: 4, fail: true}, nil)

	ctx := context.Background()
	require.NoError(t, proc.processUpsert(ctx, FileEvent{Path: path, Change: Created}))

	require.NotEmpty(t, st.nodes, "graph write must succeed even when embedding fails")

	meta, err := st.GetFileMeta(ctx, path)
	require.NoError(t, err)
	require.True(t, meta.IndexFailed)
}

func TestProcessBatch_AppliesDeletesBeforeUpserts(t *testing.T) {
	dir := t.TempDir()
	pathA := writeGoFile(t, dir, "a.go", "package a\n\nfunc Foo() {}\n")
	pathB := writeGoFile(t, dir, "b.go", "package a\n\nfunc Bar() {}\n")

	pool, err := parser.NewPool("proj")
	require.NoError(t, err)

	st := newFakeStore()
	idx := newFakeIndex()
	proc := NewProcessor(st, idx, pool, &fakeEmbedder{dim: 4}, nil)
	ctx := context.Background()

	require.NoError(t, proc.processUpsert(ctx, FileEvent{Path: pathA, Change: Created}))

	err = proc.ProcessBatch(ctx, Batch{
		Deletes: []FileEvent{{Path: pathA, Change: Deleted}},
		Upserts: []FileEvent{{Path: pathB, Change: Created}},
	})
	require.NoError(t, err)

	_, err = st.GetFileMeta(ctx, pathA)
	require.Error(t, err, "a.go's file_meta should be gone")

	metaB, err := st.GetFileMeta(ctx, pathB)
	require.NoError(t, err)
	require.Greater(t, metaB.NodeCount, 0)
}

// TestProcessBatch_ParsesWholeBatchAcrossWorkers drives a batch wide
// enough to spread across the parser pool's workers and checks every file
// lands: a per-file result regardless of parse scheduling, and an
// unsupported file skipped without affecting its neighbors.
func TestProcessBatch_ParsesWholeBatchAcrossWorkers(t *testing.T) {
	dir := t.TempDir()
	var upserts []FileEvent
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		path := writeGoFile(t, dir, name+".go", "package p\n\nfunc Fn_"+name+"() {}\n")
		upserts = append(upserts, FileEvent{Path: path, Change: Created})
	}
	// One file with no supported extension rides along and is skipped.
	skipped := writeGoFile(t, dir, "notes.txt", "not code")
	upserts = append(upserts, FileEvent{Path: skipped, Change: Created})

	pool, err := parser.NewPool("proj")
	require.NoError(t, err)

	st := newFakeStore()
	idx := newFakeIndex()
	proc := NewProcessor(st, idx, pool, &fakeEmbedder{dim: 4}, nil)

	ctx := context.Background()
	require.NoError(t, proc.ProcessBatch(ctx, Batch{Upserts: upserts}))

	for _, ev := range upserts[:8] {
		meta, err := st.GetFileMeta(ctx, ev.Path)
		require.NoError(t, err, "missing file_meta for %s", ev.Path)
		require.False(t, meta.IndexFailed)
		require.Greater(t, meta.NodeCount, 0)
	}
	_, err = st.GetFileMeta(ctx, skipped)
	require.Error(t, err, "unsupported extensions are never indexed")
}

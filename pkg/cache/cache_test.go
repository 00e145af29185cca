// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/entity"
)

func testConfig() Config {
	return Config{MaxEntries: 1000, MaxCostBytes: 1 << 20, DefaultTTL: time.Minute}
}

func TestNodeCache_SetGetInvalidate(t *testing.T) {
	nc, err := NewNodeCache(testConfig())
	require.NoError(t, err)
	defer nc.Close()

	nt := entity.NodeFunction
	n := entity.NewNode("proj", "Foo", &nt, nil, entity.Location{FilePath: "a.go", Line: 1, Column: 1})
	nc.Set(n, NodeCost(n))
	nc.c.Wait()

	got, ok := nc.Get(n.ID)
	require.True(t, ok)
	require.Equal(t, n.Name, got.Name)

	nc.Invalidate(n.ID)
	nc.c.Wait()
	_, ok = nc.Get(n.ID)
	require.False(t, ok)
}

func TestEmbeddingCache_KeyedByModelAndContentHash(t *testing.T) {
	ec, err := NewEmbeddingCache(testConfig())
	require.NoError(t, err)
	defer ec.Close()

	key := EmbeddingKey("local-v1", "deadbeef")
	ec.Set(key, []float32{0.1, 0.2})
	ec.c.Wait()

	got, ok := ec.Get(key)
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2}, got)

	_, ok = ec.Get(EmbeddingKey("local-v1", "different"))
	require.False(t, ok)
}

func TestQueryCache_ClearDropsEverything(t *testing.T) {
	qc, err := NewQueryCache(testConfig())
	require.NoError(t, err)
	defer qc.Close()

	qc.Set("q1", []byte("result-1"))
	qc.c.Wait()

	_, ok := qc.Get("q1")
	require.True(t, ok)

	qc.Clear()
	qc.c.Wait()

	_, ok = qc.Get("q1")
	require.False(t, ok)
}

func TestNodeCost_GrowsWithContentAndEmbedding(t *testing.T) {
	bare := entity.NewNode("proj", "Bare", nil, nil, entity.Location{FilePath: "a.go", Line: 1, Column: 1})
	withBody := entity.NewNode("proj", "Bare", nil, nil, entity.Location{FilePath: "a.go", Line: 1, Column: 1}).
		WithContent("some source text").
		WithEmbedding(make([]float32, 128))

	require.Greater(t, NodeCost(withBody), NodeCost(bare))
}

func TestNodeCache_DistinctIDsDoNotCollide(t *testing.T) {
	nc, err := NewNodeCache(testConfig())
	require.NoError(t, err)
	defer nc.Close()

	a := entity.NewNode("proj", "A", nil, nil, entity.Location{FilePath: "a.go", Line: 1, Column: 1})
	b := entity.NewNode("proj", "B", nil, nil, entity.Location{FilePath: "b.go", Line: 1, Column: 1})
	require.NotEqual(t, a.ID, b.ID)

	nc.Set(a, NodeCost(a))
	nc.Set(b, NodeCost(b))
	nc.c.Wait()

	gotA, ok := nc.Get(a.ID)
	require.True(t, ok)
	require.Equal(t, "A", gotA.Name)
}

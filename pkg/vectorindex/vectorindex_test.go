// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vectorindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/entity"
)

func newID(t *testing.T) entity.ID {
	t.Helper()
	return uuid.New()
}

func TestFlatIndex_AddSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex()

	a := newID(t)
	b := newID(t)
	require.NoError(t, idx.Add(a, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(b, []float32{0, 1, 0}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, a, results[0].ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx := NewFlatIndex()
	require.NoError(t, idx.Add(newID(t), []float32{1, 0}))

	err := idx.Add(newID(t), []float32{1, 0, 0})
	require.Error(t, err)
}

func TestFlatIndex_RemoveExcludesFromSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex()
	a := newID(t)
	require.NoError(t, idx.Add(a, []float32{1, 0, 0}))
	idx.Remove(a)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestHNSWIndex_AddSearchFindsNearest(t *testing.T) {
	ctx := context.Background()
	idx := NewHNSWIndex(HNSWConfig{})

	close1 := newID(t)
	far := newID(t)
	require.NoError(t, idx.Add(close1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(far, []float32{0, 0, 1}))

	results, err := idx.Search(ctx, []float32{0.9, 0.1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, close1, results[0].ID)
}

func TestHNSWIndex_RemoveThenRebuildCompacts(t *testing.T) {
	ctx := context.Background()
	idx := NewHNSWIndex(HNSWConfig{})

	a := newID(t)
	b := newID(t)
	require.NoError(t, idx.Add(a, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(b, []float32{0, 1, 0}))
	idx.Remove(a)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, a, r.ID)
	}

	require.NoError(t, idx.Rebuild(ctx))
	require.Equal(t, 1, idx.Stats().Live)
	require.Equal(t, 0, idx.Stats().Tombstoned)
}

func TestVectorIndex_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx := NewFlatIndex()
	a := newID(t)
	b := newID(t)
	require.NoError(t, idx.Add(a, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(b, []float32{0, 1, 0}))

	require.NoError(t, Save(dir, "flat", idx))

	reloaded := NewFlatIndex()
	require.NoError(t, Load(dir, reloaded))
	require.Equal(t, 2, reloaded.Stats().Live)

	results, err := reloaded.Search(ctx, []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, a, results[0].ID)
}

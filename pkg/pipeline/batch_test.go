// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatcher_FlushesOnMaxSize(t *testing.T) {
	b := NewBatcher(time.Hour, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan FileEvent, 8)
	go b.Run(ctx, in)

	in <- FileEvent{Path: "a.go", Change: Modified, At: time.Unix(1, 0)}
	in <- FileEvent{Path: "b.go", Change: Deleted, At: time.Unix(2, 0)}
	in <- FileEvent{Path: "c.go", Change: Created, At: time.Unix(3, 0)}

	select {
	case batch := <-b.Out:
		require.Len(t, batch.Deletes, 1)
		require.Len(t, batch.Upserts, 2)
		require.Equal(t, "b.go", batch.Deletes[0].Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestBatcher_FlushesOnTimeout(t *testing.T) {
	b := NewBatcher(20*time.Millisecond, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan FileEvent, 8)
	go b.Run(ctx, in)

	in <- FileEvent{Path: "a.go", Change: Modified}

	select {
	case batch := <-b.Out:
		require.Len(t, batch.Upserts, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout flush")
	}
}

func TestBatcher_FlushesPartialBatchOnShutdown(t *testing.T) {
	b := NewBatcher(time.Hour, 100)
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan FileEvent, 8)
	go b.Run(ctx, in)

	in <- FileEvent{Path: "a.go", Change: Modified}
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case batch := <-b.Out:
		require.Len(t, batch.Upserts, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shutdown flush")
	}
}

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

func TestDebouncer_CoalescesBurstToLatest(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan FileEvent, 8)
	go d.Run(ctx, in)

	in <- FileEvent{Path: "a.go", Change: Modified, At: time.Unix(1, 0)}
	in <- FileEvent{Path: "a.go", Change: Modified, At: time.Unix(2, 0)}
	in <- FileEvent{Path: "a.go", Change: Deleted, At: time.Unix(3, 0)}

	select {
	case ev := <-d.Out:
		require.Equal(t, "a.go", ev.Path)
		require.Equal(t, Deleted, ev.Change)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	select {
	case ev := <-d.Out:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncer_DistinctPathsBothDelivered(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan FileEvent, 8)
	go d.Run(ctx, in)

	in <- FileEvent{Path: "a.go", Change: Modified}
	in <- FileEvent{Path: "b.go", Change: Created}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-d.Out:
			seen[ev.Path] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	require.True(t, seen["a.go"])
	require.True(t, seen["b.go"])
}

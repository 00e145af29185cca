// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"sort"
	"time"
)

// Batch groups the file events the Batch stage decided to flush together,
// split into Deletes and Upserts so callers can apply all deletes before
// any insert, never resurrecting a removed entity via a same-id upsert.
type Batch struct {
	Deletes []FileEvent
	Upserts []FileEvent
}

// Empty reports whether the batch carries no events at all.
func (b Batch) Empty() bool { return len(b.Deletes) == 0 && len(b.Upserts) == 0 }

// Batcher accumulates debounced events into Batches, flushing whenever
// BatchMaxSize is reached or BatchTimeout elapses since the batch's first
// event, whichever comes first.
type Batcher struct {
	timeout time.Duration
	maxSize int
	Out     chan Batch
}

// NewBatcher creates a Batcher with the given flush thresholds.
func NewBatcher(timeout time.Duration, maxSize int) *Batcher {
	return &Batcher{timeout: timeout, maxSize: maxSize, Out: make(chan Batch, 8)}
}

// Run consumes in until ctx is cancelled or in closes, emitting Batches on
// Out. Any partial batch open at shutdown is flushed before Out closes.
func (b *Batcher) Run(ctx context.Context, in <-chan FileEvent) {
	defer close(b.Out)

	var current []FileEvent
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(current) == 0 {
			return
		}
		b.Out <- splitBatch(current)
		current = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev, ok := <-in:
			if !ok {
				flush()
				return
			}
			current = append(current, ev)
			if timer == nil {
				timer = time.NewTimer(b.timeout)
				timerC = timer.C
			}
			if len(current) >= b.maxSize {
				flush()
			}
		case <-timerC:
			flush()
		}
	}
}

// splitBatch partitions events into deletes and upserts, preserving each
// group's relative arrival order.
func splitBatch(events []FileEvent) Batch {
	var batch Batch
	for _, ev := range events {
		if ev.Change == Deleted {
			batch.Deletes = append(batch.Deletes, ev)
		} else {
			batch.Upserts = append(batch.Upserts, ev)
		}
	}
	sort.SliceStable(batch.Deletes, func(i, j int) bool { return batch.Deletes[i].At.Before(batch.Deletes[j].At) })
	sort.SliceStable(batch.Upserts, func(i, j int) bool { return batch.Upserts[i].At.Before(batch.Upserts[j].At) })
	return batch
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler periodically retries files marked index_failed. Rather than
// resuming a one-shot batch ingest from a checkpoint, it continuously
// re-drives previously failed files back through the Processor on a fixed
// interval, backing off per file via BackoffConfig so a persistently
// broken file does not get retried every tick forever.
type Reconciler struct {
	interval  time.Duration
	processor *Processor
	lister    FailedFileLister
	backoff   BackoffConfig
	log       *slog.Logger

	attempts map[string]int
	nextTry  map[string]time.Time
}

// FailedFileLister reports the paths currently marked index_failed. In
// production this scans file_meta records; tests can fake it directly.
type FailedFileLister interface {
	FailedFiles(ctx context.Context) ([]string, error)
}

// NewReconciler creates a Reconciler that retries lister's failed files
// through processor every interval.
func NewReconciler(interval time.Duration, processor *Processor, lister FailedFileLister, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval:  interval,
		processor: processor,
		lister:    lister,
		backoff:   DefaultBackoffConfig(),
		log:       logger,
		attempts:  make(map[string]int),
		nextTry:   make(map[string]time.Time),
	}
}

// Run ticks every interval until ctx is cancelled, re-processing every
// currently failed file whose backoff delay has elapsed.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	paths, err := r.lister.FailedFiles(ctx)
	if err != nil {
		r.log.Warn("pipeline.reconcile_list_failed", "err", err)
		return
	}

	current := make(map[string]bool, len(paths))
	t := now()
	for _, path := range paths {
		current[path] = true
		if due, ok := r.nextTry[path]; ok && t.Before(due) {
			continue
		}

		err := r.processor.processUpsert(ctx, FileEvent{Path: path, Change: Modified, At: t})
		if err != nil {
			n := r.attempts[path]
			r.attempts[path] = n + 1
			r.nextTry[path] = t.Add(r.backoff.Backoff(n))
			r.log.Warn("pipeline.reconcile_retry_failed", "path", path, "attempt", n+1, "err", err)
			continue
		}
		delete(r.attempts, path)
		delete(r.nextTry, path)
	}

	for path := range r.attempts {
		if !current[path] {
			delete(r.attempts, path)
			delete(r.nextTry, path)
		}
	}
}

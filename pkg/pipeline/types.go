// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package pipeline implements the change pipeline: the state machine that
// keeps on-disk graph and vector state consistent with the source tree
// through seven stages (Watch, Debounce, Batch, Parse, Diff, Apply,
// Resolve). The watch stage uses fsnotify for filesystem events; the
// batch/diff/resolve stages follow the same shape an ingestion batcher and
// delta resolver would.
package pipeline

import "time"

// ChangeType is the kind of filesystem event the watcher observed.
type ChangeType string

const (
	Created  ChangeType = "created"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// FileEvent is one raw or debounced filesystem event.
type FileEvent struct {
	Path   string
	Change ChangeType
	At     time.Time
}

// State is the daemon's lifecycle state:
// Stopped -> Starting -> Running -> Stopping -> Stopped;
// Running -> Error on unrecoverable storage failure; Error -> Running
// after operator intervention.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Config bundles every tunable the pipeline's stages need.
type Config struct {
	// ProjectRoot is the directory tree the watcher recurses over.
	ProjectRoot string
	// IgnoreDirs are directory basenames the watcher never descends into
	// or emits events from.
	IgnoreDirs []string
	// DebounceWindow coalesces per-path events arriving within it.
	DebounceWindow time.Duration
	// BatchTimeout flushes an in-progress batch once it has been open
	// this long, even if BatchMaxSize hasn't been reached.
	BatchTimeout time.Duration
	// BatchMaxSize flushes an in-progress batch once it reaches this many
	// events, even if BatchTimeout hasn't elapsed.
	BatchMaxSize int
	// ReconcileInterval is how often the Reconciler retries index-failed
	// files.
	ReconcileInterval time.Duration
}

// DefaultConfig returns the stock tuning: a 30ms debounce window, a 200ms
// batch timeout, and the usual source-control/build output directories
// ignored.
func DefaultConfig(projectRoot string) Config {
	return Config{
		ProjectRoot:       projectRoot,
		IgnoreDirs:        []string{".git", "node_modules", "target", "vendor", ".venv", "dist", "build"},
		DebounceWindow:    30 * time.Millisecond,
		BatchTimeout:      200 * time.Millisecond,
		BatchMaxSize:      500,
		ReconcileInterval: 30 * time.Second,
	}
}

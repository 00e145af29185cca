// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kraklabs/codegraph/pkg/concurrent"
)

// now is overridden in tests that need deterministic timestamps.
var now = time.Now

// Watcher is the pipeline's Watch stage: it recurses ProjectRoot at start,
// registers an fsnotify watch on every directory found (fsnotify has no
// native recursive mode), and emits a FileEvent per change on Events.
// Directories named in Config.IgnoreDirs are never descended into or
// watched.
//
// Raw events pass through a wait-free SPSC ring between the fsnotify loop
// (single producer) and a forwarder goroutine (single consumer), so the
// hot path does one ring slot write per event and never allocates or
// blocks; a separate forwarder drains the ring into the buffered Events
// channel the debouncer consumes.
type Watcher struct {
	cfg Config
	log *slog.Logger

	fsw    *fsnotify.Watcher
	Events chan FileEvent

	ring     *concurrent.SPSCQueue[FileEvent]
	notify   chan struct{}
	loopDone chan struct{}

	mu      sync.Mutex
	watched map[string]bool
}

// NewWatcher creates a Watcher for cfg.ProjectRoot. Call Start to begin
// recursing and watching; events arrive on Events until Close.
func NewWatcher(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pipeline: create watcher: %w", err)
	}
	return &Watcher{
		cfg:      cfg,
		log:      logger,
		fsw:      fsw,
		Events:   make(chan FileEvent, 256),
		ring:     concurrent.NewSPSCQueue[FileEvent](1024),
		notify:   make(chan struct{}, 1),
		loopDone: make(chan struct{}),
		watched:  make(map[string]bool),
	}, nil
}

// Start walks cfg.ProjectRoot registering watches on every non-ignored
// directory, then begins translating fsnotify events into FileEvents on a
// background goroutine until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.cfg.ProjectRoot); err != nil {
		return err
	}
	go w.loop(ctx)
	go w.forward(ctx)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(d.Name()) && path != root {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("pipeline: watch %s: %w", path, err)
	}
	w.watched[path] = true
	return nil
}

func (w *Watcher) ignored(base string) bool {
	for _, d := range w.cfg.IgnoreDirs {
		if base == d {
			return true
		}
	}
	return false
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("pipeline.watch.error", "err", err)
		}
	}
}

// forward drains the SPSC ring into the Events channel, waking on notify
// and exiting once the fsnotify loop has stopped and the ring is empty.
func (w *Watcher) forward(ctx context.Context) {
	defer close(w.Events)
	for {
		for {
			ev, err := w.ring.TryPop()
			if err != nil {
				break
			}
			select {
			case w.Events <- ev:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-w.notify:
		case <-w.loopDone:
			for {
				ev, err := w.ring.TryPop()
				if err != nil {
					return
				}
				select {
				case w.Events <- ev:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if w.ignored(base) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addTree(ev.Name)
			return
		}
		w.emit(ev.Name, Created)
	case ev.Op&fsnotify.Write != 0:
		w.emit(ev.Name, Modified)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.watched, ev.Name)
		w.mu.Unlock()
		w.emit(ev.Name, Deleted)
	}
}

// emit pushes one event onto the ring. A full ring means the downstream
// stages are saturated; the event is dropped with a warning rather than
// silently, and the debounce/reconcile layers pick the file up again on
// its next change or reconciler pass.
func (w *Watcher) emit(path string, change ChangeType) {
	if err := w.ring.TryPush(FileEvent{Path: path, Change: change, At: now()}); err != nil {
		w.log.Warn("pipeline.watch.saturated", "path", path, "change", change)
		return
	}
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Close releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// StoreLister is FileStore plus the enumeration the Reconciler needs;
// *store.Store satisfies both.
type StoreLister interface {
	FileStore
	FailedFileLister
}

// Pipeline wires the Watch, Debounce, Batch, Parse, Diff, Apply, and
// Resolve stages together and drives the daemon's lifecycle state machine:
// Stopped -> Starting -> Running -> Stopping -> Stopped, with a Running ->
// Error excursion on a fatal storage failure.
type Pipeline struct {
	cfg   Config
	store StoreLister
	proc  *Processor
	log   *slog.Logger

	mu    sync.Mutex
	state State

	watcher    *Watcher
	debouncer  *Debouncer
	batcher    *Batcher
	reconciler *Reconciler
	runCtx     context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// New builds a Pipeline. store and proc must share the same underlying
// graph store (proc writes through it; the reconciler lists failed files
// from it).
func New(cfg Config, store StoreLister, proc *Processor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, store: store, proc: proc, log: logger, state: StateStopped}
}

// State reports the daemon's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.log.Info("pipeline.state", "state", s)
}

// Start transitions Stopped -> Starting -> Running, launching the watch,
// debounce, batch, and processing goroutines plus the reconciler, all
// bound to an internal context cancelled by Stop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateStopped {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: cannot start from state %s", p.state)
	}
	p.mu.Unlock()

	p.setState(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.cancel = cancel

	watcher, err := NewWatcher(p.cfg, p.log)
	if err != nil {
		p.setState(StateStopped)
		return err
	}
	if err := watcher.Start(runCtx); err != nil {
		p.setState(StateStopped)
		return err
	}
	p.watcher = watcher

	p.debouncer = NewDebouncer(p.cfg.DebounceWindow)
	p.batcher = NewBatcher(p.cfg.BatchTimeout, p.cfg.BatchMaxSize)
	p.reconciler = NewReconciler(p.cfg.ReconcileInterval, p.proc, p.store, p.log)

	go p.debouncer.Run(runCtx, watcher.Events)
	go p.batcher.Run(runCtx, p.debouncer.Out)
	go p.reconciler.Run(runCtx)

	p.done = make(chan struct{})
	go p.drainBatches(runCtx)

	p.setState(StateRunning)
	return nil
}

func (p *Pipeline) drainBatches(ctx context.Context) {
	defer close(p.done)
	for batch := range p.batcher.Out {
		if batch.Empty() {
			continue
		}
		if err := p.proc.ProcessBatch(ctx, batch); err != nil {
			p.log.Error("pipeline.fatal", "err", err)
			p.setState(StateError)
			return
		}
	}
}

// Resume transitions Error -> Running after operator intervention,
// restarting the batch drain loop on the same run context
// Start established. The watch/debounce/batch/reconcile goroutines started
// by Start were never cancelled while in StateError, so only the drain
// loop needs relaunching.
func (p *Pipeline) Resume() error {
	p.mu.Lock()
	if p.state != StateError {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: cannot resume from state %s", p.state)
	}
	p.mu.Unlock()

	p.done = make(chan struct{})
	go p.drainBatches(p.runCtx)
	p.setState(StateRunning)
	return nil
}

// Stop transitions Running -> Stopping -> Stopped, cancelling every
// pipeline goroutine and waiting for the batch drain loop to exit so no
// in-flight batch is abandoned mid-apply.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != StateRunning && p.state != StateError {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: cannot stop from state %s", p.state)
	}
	p.mu.Unlock()

	p.setState(StateStopping)
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
	if p.done != nil {
		<-p.done
	}
	p.setState(StateStopped)
	return nil
}

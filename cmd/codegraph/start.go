// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/ui"
	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/pipeline"
)

// Daemon exit codes, distinct from internal/errors' general-purpose CLI
// exit codes, which this subcommand deliberately does not use.
const (
	exitClean                = 0
	exitConfigError          = 1
	exitStorageLockConflict  = 2
	exitStorageUnrecoverable = 3
)

// runStart executes the 'start' CLI command: it acquires the project's PID
// file, builds the change pipeline, and runs it until SIGINT/SIGTERM,
// draining queues and releasing the PID file before exiting.
func runStart(args []string, projectRoot string, globals GlobalFlags) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	metricsAddr := fs.String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph start [options]

Description:
  Run the change-pipeline daemon in the foreground: watch the project
  tree, debounce and batch filesystem events, parse changed files, and
  keep the graph store and vector index consistent with disk. Blocks
  until interrupted (Ctrl-C) or 'codegraph stop' signals it.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(exitConfigError)
	}

	a, err := openApp(projectRoot)
	if err != nil {
		ui.Error(err.Error())
		os.Exit(exitConfigError)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			a.log.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	if lockErr := a.pidFile.Acquire(); lockErr != nil {
		ui.Error(lockErr.Error())
		a.store.Close()
		os.Exit(exitStorageLockConflict)
	}
	defer a.pidFile.Release()

	pipelineCfg := a.pipelineConfig()
	p := pipeline.New(pipelineCfg, a.store, a.processor(), slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := p.Start(ctx); err != nil {
		ui.Error(fmt.Sprintf("failed to start pipeline: %v", err))
		a.close()
		os.Exit(exitConfigError)
	}
	ui.Success(fmt.Sprintf("codegraph daemon running (pid %d), watching %s", os.Getpid(), pipelineCfg.ProjectRoot))

	<-ctx.Done()
	ui.Info("shutting down...")

	if err := p.Stop(); err != nil {
		ui.Warning(fmt.Sprintf("pipeline stop: %v", err))
	}
	if p.State() == pipeline.StateError {
		a.close()
		os.Exit(exitStorageUnrecoverable)
	}
	if err := a.close(); err != nil {
		if cg, ok := err.(*cgerrors.Error); ok && cgerrors.IsFatal(cg) {
			os.Exit(exitStorageUnrecoverable)
		}
		ui.Warning(fmt.Sprintf("close: %v", err))
	}
	os.Exit(exitClean)
}

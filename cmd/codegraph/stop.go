// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/ui"
	"github.com/kraklabs/codegraph/pkg/daemon"
)

// runStop executes the 'stop' CLI command: it reads daemon.pid and sends
// SIGTERM to the running daemon, which triggers the graceful shutdown
// path in runStart (drain queues, release the PID file, exit 0).
func runStop(args []string, projectRoot string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: codegraph stop [options]\n\nSignal a running codegraph daemon to shut down gracefully.\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		fatalError(err, globals.JSON)
	}

	pf := daemon.New(cfg.DataDir())
	pid, running, ok := pf.Read()
	if !ok {
		errors.FatalError(errors.NewNotFoundError(
			"No codegraph daemon is running",
			fmt.Sprintf("no daemon.pid file found under %s", cfg.DataDir()),
			"Run 'codegraph start' first",
		), globals.JSON)
	}
	if !running {
		ui.Warning(fmt.Sprintf("daemon.pid names pid %d, which is not running; nothing to stop", pid))
		return
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		errors.FatalError(errors.NewInternalError(
			"Failed to signal daemon",
			err.Error(),
			"Check process permissions or stop it manually",
			err,
		), globals.JSON)
	}
	ui.Success(fmt.Sprintf("Sent SIGTERM to codegraph daemon (pid %d)", pid))
}

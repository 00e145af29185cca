// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/ui"
)

// Version information, set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Emit machine-readable JSON output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		projectRoot = flag.String("project-root", "", "Project root (default: CODEGRAPH_PROJECT_ROOT or the working directory)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CodeGraph - Code Intelligence Engine CLI

Usage:
  codegraph <command> [options]

Commands:
  init      Create .codegraph/config.toml and an empty project store
  index     Parse the project tree once and populate the graph + vector index
  start     Run the change-pipeline daemon (watch, debounce, batch, apply)
  stop      Signal a running daemon to shut down
  status    Report the daemon's lifecycle state and store/index stats
  query     Invoke one tool-executor operation and print its JSON result

Global Options:
  --project-root   Project root directory
  --json           Emit machine-readable JSON output
  --no-color       Disable colored output
  --version        Show version and exit

Environment Variables:
  CODEGRAPH_PROJECT_ROOT      Overrides working-directory detection
  CODEGRAPH_EMBEDDING_MODEL   Embedding model id
  CODEGRAPH_EMBEDDING_DIM     Embedding dimension D
  CODEGRAPH_MAX_WORKERS       Parser/writer pool size
  CODEGRAPH_DEBOUNCE_MS       Debounce window in milliseconds
  CODEGRAPH_BATCH_TIMEOUT_MS  Batch flush timeout in milliseconds

Data Storage:
  Persisted state lives under <project_root>/.codegraph/
`)
	}

	flag.Parse()
	if *noColor {
		ui.InitColors(true)
	}

	if *showVersion {
		fmt.Printf("codegraph version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOutput}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "init":
		runInit(cmdArgs, *projectRoot, globals)
	case "index":
		runIndex(cmdArgs, *projectRoot, globals)
	case "start":
		runStart(cmdArgs, *projectRoot, globals)
	case "stop":
		runStop(cmdArgs, *projectRoot, globals)
	case "status":
		runStatus(cmdArgs, *projectRoot, globals)
	case "query":
		runQuery(cmdArgs, *projectRoot, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/ui"
)

// runInit executes the 'init' CLI command: it creates
// <project_root>/.codegraph/ with a default config.toml and the db/,
// vectors/, and cache/ subdirectories, without indexing anything yet.
// Idempotent: re-running init on an already-initialized project only
// fills in missing pieces.
func runInit(args []string, projectRoot string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	embeddingDim := fs.Int("embedding-dim", 256, "Embedding vector dimension D")
	embeddingModel := fs.String("embedding-model", "local-deterministic-v1", "Embedding model identifier")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph init [options]

Description:
  Create .codegraph/config.toml and the data directories (db/, vectors/,
  cache/) under the project root. Safe to run more than once.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		fatalError(err, globals.JSON)
	}
	cfg.EmbeddingDim = *embeddingDim
	cfg.EmbeddingModel = *embeddingModel

	dataDir := cfg.DataDir()
	for _, sub := range []string{"db", "vectors", "cache"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			errors.FatalError(errors.NewPermissionError(
				"Cannot create .codegraph data directory",
				err.Error(),
				"Check write permissions on the project root",
				err,
			), globals.JSON)
		}
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		contents := renderConfigTOML(cfg)
		if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
			errors.FatalError(errors.NewPermissionError(
				"Cannot write config.toml",
				err.Error(),
				"Check write permissions on .codegraph/",
				err,
			), globals.JSON)
		}
		ui.Success(fmt.Sprintf("Wrote %s", configPath))
	} else {
		ui.Info(fmt.Sprintf("%s already exists, leaving it in place", configPath))
	}

	ui.Success(fmt.Sprintf("Initialized project at %s", dataDir))
}

func renderConfigTOML(cfg *config.Config) string {
	return fmt.Sprintf(`# CodeGraph project configuration.
# Every field here may also be set via the matching CODEGRAPH_* environment
# variables (see codegraph --help); environment variables take precedence.

embedding_model    = %q
embedding_dim      = %d
max_workers        = %d
debounce_ms        = %d
batch_timeout_ms   = %d
embedding_provider = %q
`, cfg.EmbeddingModel, cfg.EmbeddingDim, cfg.MaxWorkers, cfg.DebounceMS, cfg.BatchTimeoutMS, cfg.EmbeddingProvider)
}

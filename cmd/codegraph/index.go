// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
	"github.com/kraklabs/codegraph/pkg/pipeline"
)

// indexReport is the --json output shape for `codegraph index`.
type indexReport struct {
	FilesScanned int    `json:"files_scanned"`
	FilesIndexed int    `json:"files_indexed"`
	FilesSkipped int    `json:"files_skipped"`
	Duration     string `json:"duration"`
}

// runIndex executes the 'index' CLI command: a full one-shot walk of the
// project tree through the same Parse/Diff/Apply/Resolve stages the
// running daemon uses per batch (pkg/pipeline.Processor.ProcessBatch),
// useful for a first index or a forced full re-index without starting the
// watcher.
func runIndex(args []string, projectRoot string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph index [options]

Description:
  Walk the project tree once, parsing every supported file and populating
  the graph store and vector index. This is the one-shot equivalent of
  letting 'codegraph start' observe a freshly cloned repository.
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := openApp(projectRoot)
	if err != nil {
		fatalError(err, globals.JSON)
	}
	defer a.close()

	ignoreDirs := pipeline.DefaultConfig(a.cfg.ProjectRoot).IgnoreDirs
	ignored := func(rel string) bool {
		for _, seg := range filepathSegments(rel) {
			for _, dir := range ignoreDirs {
				if seg == dir {
					return true
				}
			}
		}
		return false
	}

	var batch pipeline.Batch
	scanned, skipped := 0, 0
	start := time.Now()

	err = filepath.WalkDir(a.cfg.ProjectRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(a.cfg.ProjectRoot, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		scanned++
		if ignored(rel) {
			skipped++
			return nil
		}
		batch.Upserts = append(batch.Upserts, pipeline.FileEvent{Path: path, Change: pipeline.Modified, At: start})
		return nil
	})
	if err != nil {
		fatalError(err, globals.JSON)
	}

	proc := a.processor()
	if procErr := proc.ProcessBatch(context.Background(), batch); procErr != nil {
		fatalError(procErr, globals.JSON)
	}

	report := indexReport{
		FilesScanned: scanned,
		FilesIndexed: len(batch.Upserts),
		FilesSkipped: skipped,
		Duration:     elapsedSince(start),
	}

	if globals.JSON {
		_ = output.JSON(report)
		return
	}
	ui.Success(fmt.Sprintf("Indexed %d files (scanned %d, skipped %d) in %s",
		report.FilesIndexed, report.FilesScanned, report.FilesSkipped, report.Duration))
}

// filepathSegments splits a relative path into its path components so the
// caller can check each directory segment against the ignore list.
func filepathSegments(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// WorkerCount resolves the parser pool's concurrency: CODEGRAPH_MAX_WORKERS
// if set and positive, otherwise runtime.NumCPU().
func WorkerCount() int {
	if v := os.Getenv("CODEGRAPH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// FileResult pairs a parsed file's path with its outcome: at most one of
// Result/Err is set. A syntax error in one file never aborts the batch;
// callers collect every FileResult rather than failing fast.
type FileResult struct {
	Path   string
	Result *ExtractionResult
	Err    error
}

// ParseFiles runs ParseFile for every path in paths across a bounded
// worker pool (golang.org/x/sync/errgroup with SetLimit), returning one
// FileResult per path regardless of individual failures. The group itself
// only returns an error for context cancellation; per-file parse errors are
// captured in the returned slice.
func (p *Pool) ParseFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(WorkerCount())

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := p.ParseFile(gctx, path)
			results[i] = FileResult{Path: path, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

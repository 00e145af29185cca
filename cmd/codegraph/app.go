// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the codegraph CLI: a thin wiring layer over
// pkg/store, pkg/vectorindex, pkg/parser, pkg/embedding, pkg/cache, and
// pkg/pipeline. This package contains no business logic of its own —
// every subcommand constructs the core components from internal/config
// and delegates to them, following a per-subcommand-file layout (main.go
// dispatches to index.go/status.go/start.go/stop.go/query.go, each with
// its own pflag.FlagSet and usage text).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/pkg/cache"
	"github.com/kraklabs/codegraph/pkg/daemon"
	"github.com/kraklabs/codegraph/pkg/embedding"
	"github.com/kraklabs/codegraph/pkg/parser"
	"github.com/kraklabs/codegraph/pkg/pipeline"
	"github.com/kraklabs/codegraph/pkg/store"
	"github.com/kraklabs/codegraph/pkg/tools"
	"github.com/kraklabs/codegraph/pkg/vectorindex"
)

// GlobalFlags carries the flags every subcommand honors, parsed once in
// main before dispatch.
type GlobalFlags struct {
	JSON       bool
	ConfigPath string
}

// app bundles the long-lived components a running subcommand needs:
// the graph store, vector index, parser pool, embedding provider, caches,
// and the tool executor built on top of them. Exactly one app should be
// open against a project's .codegraph directory at a time (enforced by
// pkg/daemon's PID file for the `start` subcommand; one-shot subcommands
// like `index` and `query` don't hold the PID file but still only open the
// store for their own duration).
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.Store
	index   vectorindex.Index
	pool    *parser.Pool
	nodeC   *cache.NodeCache
	embedC  *cache.EmbeddingCache
	queryC  *cache.QueryCache
	embed   embedding.Provider
	rerank  embedding.Reranker
	cached  *embedding.CachedProvider
	tools   *tools.Executor
	pidFile *daemon.PIDFile
}

// openApp loads configuration rooted at projectRoot (empty uses the
// working directory, subject to CODEGRAPH_PROJECT_ROOT), opens the graph
// store and vector index under its .codegraph directory, and wires the
// embedding provider and tool executor. Callers must call close() when
// done.
func openApp(projectRoot string) (*app, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("codegraph: load config: %w", err)
	}
	log := slog.Default()

	dataDir := cfg.DataDir()
	cacheDir := filepath.Join(dataDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("codegraph: mkdir cache dir: %w", err)
	}
	cacheCfg := cache.DefaultConfig()
	nodeC, err := cache.NewNodeCache(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("codegraph: new node cache: %w", err)
	}
	embedC, err := cache.NewEmbeddingCache(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("codegraph: new embedding cache: %w", err)
	}
	queryC, err := cache.NewQueryCache(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("codegraph: new query cache: %w", err)
	}

	st, err := store.Open(store.Config{
		Dir:        filepath.Join(dataDir, "db"),
		Logger:     log,
		NodeCache:  nodeC,
		QueryCache: queryC,
	})
	if err != nil {
		return nil, fmt.Errorf("codegraph: open store: %w", err)
	}

	idx := vectorindex.NewHNSWIndex(vectorindex.DefaultHNSWConfig())
	vecDir := filepath.Join(dataDir, "vectors")
	if err := vectorindex.Load(vecDir, idx); err != nil {
		st.Close()
		return nil, fmt.Errorf("codegraph: load vector index: %w", err)
	}

	pool, err := parser.NewPool(projectIDFor(cfg.ProjectRoot))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("codegraph: new parser pool: %w", err)
	}

	embedCfg := embedding.DefaultConfig(cfg.EmbeddingDim, cfg.EmbeddingModel)
	var provider embedding.Provider
	switch cfg.EmbeddingProvider {
	case "remote":
		provider = embedding.NewRemoteAPI(embedCfg, embedding.RemoteAPIOptions{
			Endpoint:          cfg.EmbeddingEndpoint,
			APIKey:            cfg.EmbeddingAPIKey,
			RequestsPerSecond: 5,
			Burst:             5,
			Logger:            log,
		})
	default:
		provider = embedding.NewLocalDeterministic(embedCfg)
	}
	cached := embedding.NewCachedProvider(provider, embedC)

	exec := tools.New(st, idx, embedding.ToolsEmbedder{Provider: cached})
	exec.Cache = queryC

	var rerank embedding.Reranker
	if cfg.RerankProvider != "" {
		chatProvider, err := embedding.NewChatProvider(embedding.ChatProviderConfig{
			Type:         cfg.RerankProvider,
			BaseURL:      cfg.RerankEndpoint,
			APIKey:       cfg.RerankAPIKey,
			DefaultModel: cfg.RerankModel,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("codegraph: new rerank provider: %w", err)
		}
		rerank = embedding.NewChatRerank(chatProvider, cfg.RerankModel)
		exec.Reranker = embedding.ToolsReranker{Reranker: rerank}
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		index:   idx,
		pool:    pool,
		nodeC:   nodeC,
		embedC:  embedC,
		queryC:  queryC,
		embed:   provider,
		rerank:  rerank,
		cached:  cached,
		tools:   exec,
		pidFile: daemon.New(dataDir),
	}
	return a, nil
}

// close persists the vector index back to disk (even when it is empty) and
// releases the caches and the store. index/query subcommands call this after a
// single operation; the running daemon calls it on shutdown instead.
func (a *app) close() error {
	vecDir := filepath.Join(a.cfg.DataDir(), "vectors")
	if err := vectorindex.Save(vecDir, "hnsw", a.index.(vectorindex.Dumper)); err != nil {
		a.log.Warn("codegraph.save_index_failed", "err", err)
	}
	a.nodeC.Close()
	a.embedC.Close()
	a.queryC.Close()
	return a.store.Close()
}

// projectIDFor derives a stable project identifier from its absolute root
// path, used as the `project_id` input to entity.DeriveNodeID.
func projectIDFor(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

// pipelineConfig builds a pkg/pipeline.Config from the loaded
// configuration's debounce/batch-timeout settings.
func (a *app) pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig(a.cfg.ProjectRoot)
	if a.cfg.DebounceMS > 0 {
		cfg.DebounceWindow = a.cfg.DebounceWindow()
	}
	if a.cfg.BatchTimeoutMS > 0 {
		cfg.BatchTimeout = a.cfg.BatchTimeout()
	}
	return cfg
}

// processor builds a pkg/pipeline.Processor wired to this app's store,
// vector index, parser pool, and cached embedding provider.
func (a *app) processor() *pipeline.Processor {
	return pipeline.NewProcessor(a.store, a.index, a.pool, a.cached, a.log)
}

// fatal prints err via internal/errors (or raw JSON under --json) and
// exits with its exit code.
func fatal(err error, jsonMode bool) {
	fatalError(err, jsonMode)
}

func elapsedSince(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}

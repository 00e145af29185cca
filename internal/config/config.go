// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads CodeGraph's configuration: a project root, the
// embedding model/dimension, worker pool sizing, and the change pipeline's
// debounce/batch timing — from `<project_root>/.codegraph/config.toml`
// (optional) layered under `CODEGRAPH_*` environment variables, env always
// winning. Follows the defaults-struct -> viper.SetDefault -> file -> env
// override pattern, using github.com/spf13/viper and
// github.com/joho/godotenv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config bundles every tunable the environment variables and
// config.toml cover.
type Config struct {
	// ProjectRoot is the repository root the watcher, parser pool, and
	// stores operate against. CODEGRAPH_PROJECT_ROOT overrides detection.
	ProjectRoot string `mapstructure:"project_root"`

	// EmbeddingModel tags embedding-cache keys and vectors/meta.json.
	// CODEGRAPH_EMBEDDING_MODEL.
	EmbeddingModel string `mapstructure:"embedding_model"`
	// EmbeddingDim is D; must match the on-disk vector index.
	// CODEGRAPH_EMBEDDING_DIM.
	EmbeddingDim int `mapstructure:"embedding_dim"`

	// MaxWorkers is loaded from max_workers / CODEGRAPH_MAX_WORKERS and
	// written to the generated config file. The parser pool does not read
	// this field: pkg/parser.WorkerCount reads CODEGRAPH_MAX_WORKERS itself
	// (runtime.NumCPU() when unset), so a value set only in the config file
	// does not change the pool size.
	MaxWorkers int `mapstructure:"max_workers"`

	// DebounceMS/BatchTimeoutMS feed pkg/pipeline.Config.
	// CODEGRAPH_DEBOUNCE_MS / CODEGRAPH_BATCH_TIMEOUT_MS.
	DebounceMS     int `mapstructure:"debounce_ms"`
	BatchTimeoutMS int `mapstructure:"batch_timeout_ms"`

	// EmbeddingProvider selects the embedding.Provider variant: "local" or
	// "remote". The concrete choice lives in configuration, not in the
	// core's type graph.
	EmbeddingProvider string `mapstructure:"embedding_provider"`
	// EmbeddingEndpoint is the RemoteAPI base URL, when EmbeddingProvider
	// is "remote".
	EmbeddingEndpoint string `mapstructure:"embedding_endpoint"`
	// EmbeddingAPIKey authenticates RemoteAPI calls.
	EmbeddingAPIKey string `mapstructure:"embedding_api_key"`

	// RerankProvider selects the optional embedding.ChatRerank backend
	// layered on top of either embedding provider: "", "ollama", "openai",
	// "anthropic", or "mock". Empty disables reranking.
	RerankProvider string `mapstructure:"rerank_provider"`
	// RerankModel is the chat model used to score semantic_code_search
	// candidates; empty uses the provider's own default.
	RerankModel string `mapstructure:"rerank_model"`
	// RerankEndpoint overrides the chat provider's base URL.
	RerankEndpoint string `mapstructure:"rerank_endpoint"`
	// RerankAPIKey authenticates the chat provider, when it requires one.
	RerankAPIKey string `mapstructure:"rerank_api_key"`
}

// DataDir returns <ProjectRoot>/.codegraph, the persisted-state root.
func (c Config) DataDir() string {
	return filepath.Join(c.ProjectRoot, ".codegraph")
}

// Default returns CodeGraph's built-in defaults, overridden by config.toml
// and then by environment variables in Load.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		ProjectRoot:       cwd,
		EmbeddingModel:    "local-deterministic-v1",
		EmbeddingDim:      256,
		MaxWorkers:        0,
		DebounceMS:        30,
		BatchTimeoutMS:    200,
		EmbeddingProvider: "local",
	}
}

// Load builds a Config: defaults, then `<projectRoot>/.codegraph/config.toml`
// if present, then CODEGRAPH_* environment variables (and a `.env` file,
// loaded first so its values are visible to the rest of this layering),
// in increasing precedence. projectRoot may be empty, in which case the
// working directory is used unless CODEGRAPH_PROJECT_ROOT overrides it.
func Load(projectRoot string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if projectRoot != "" {
		cfg.ProjectRoot = projectRoot
	}
	if root := os.Getenv("CODEGRAPH_PROJECT_ROOT"); root != "" {
		cfg.ProjectRoot = root
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(cfg.ProjectRoot, ".codegraph"))

	v.SetDefault("project_root", cfg.ProjectRoot)
	v.SetDefault("embedding_model", cfg.EmbeddingModel)
	v.SetDefault("embedding_dim", cfg.EmbeddingDim)
	v.SetDefault("max_workers", cfg.MaxWorkers)
	v.SetDefault("debounce_ms", cfg.DebounceMS)
	v.SetDefault("batch_timeout_ms", cfg.BatchTimeoutMS)
	v.SetDefault("embedding_provider", cfg.EmbeddingProvider)
	v.SetDefault("embedding_endpoint", cfg.EmbeddingEndpoint)
	v.SetDefault("embedding_api_key", cfg.EmbeddingAPIKey)
	v.SetDefault("rerank_provider", cfg.RerankProvider)
	v.SetDefault("rerank_model", cfg.RerankModel)
	v.SetDefault("rerank_endpoint", cfg.RerankEndpoint)
	v.SetDefault("rerank_api_key", cfg.RerankAPIKey)

	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config.toml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadDotEnv loads a development .env file from the working directory, if
// present. Missing files are not an error.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// applyEnvOverrides re-applies the literal CODEGRAPH_* variable names on top
// of whatever Viper's AutomaticEnv already resolved, so the documented
// variable names always win regardless of Viper's key-splitting conventions
// (e.g. CODEGRAPH_EMBEDDING_DIM vs the "embedding.dim"-style nesting
// AutomaticEnv expects for structured keys).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEGRAPH_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("CODEGRAPH_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := envInt("CODEGRAPH_EMBEDDING_DIM"); v != 0 {
		cfg.EmbeddingDim = v
	}
	if v := envInt("CODEGRAPH_MAX_WORKERS"); v != 0 {
		cfg.MaxWorkers = v
	}
	if v := envInt("CODEGRAPH_DEBOUNCE_MS"); v != 0 {
		cfg.DebounceMS = v
	}
	if v := envInt("CODEGRAPH_BATCH_TIMEOUT_MS"); v != 0 {
		cfg.BatchTimeoutMS = v
	}
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0
	}
	return n
}

// DebounceWindow and BatchTimeout convert the millisecond config fields to
// time.Duration for pkg/pipeline.Config.
func (c Config) DebounceWindow() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }
func (c Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// remoteRetryAttempts and remoteRetryBase ground RemoteAPI's backoff in the
// same shape pkg/store.withRetry uses for Badger conflicts: a small bounded
// number of attempts with doubling delay, since transient provider errors
// are expected to be retried rather than failed immediately.
const (
	remoteRetryAttempts = 4
	remoteRetryBase     = 250 * time.Millisecond
)

// RemoteAPI embeds texts against an HTTP endpoint speaking an
// OpenAI-compatible embeddings API (POST {input, model} -> {data[].embedding}),
// the same request/response shape this package's openaiChatProvider speaks
// for chat completions. Requests are rate-limited and retried with
// exponential backoff.
type RemoteAPI struct {
	cfg        Config
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// RemoteAPIOptions configures a RemoteAPI provider beyond the shared Config.
type RemoteAPIOptions struct {
	Endpoint string
	APIKey   string
	// RequestsPerSecond bounds outbound call rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// NewRemoteAPI builds a RemoteAPI provider for cfg and opts.
func NewRemoteAPI(cfg Config, opts RemoteAPIOptions) *RemoteAPI {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &RemoteAPI{
		cfg:        cfg,
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		httpClient: client,
		limiter:    limiter,
		log:        logger,
	}
}

func (r *RemoteAPI) Dimensions() int { return r.cfg.Dimensions }
func (r *RemoteAPI) ModelID() string { return r.cfg.ModelID }

type remoteEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type remoteEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed embeds texts in batches of at most cfg.MaxBatchSize, honoring the
// rate limiter and retrying transient failures (5xx, network errors) with
// exponential backoff; 4xx responses are not retried.
func (r *RemoteAPI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	batchSize := r.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if batchSize <= 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			batch[i] = truncate(t, r.cfg.MaxTokens)
		}

		vecs, err := r.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (r *RemoteAPI) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	delay := remoteRetryBase
	var lastErr error
	for attempt := 0; attempt < remoteRetryAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, retryable, err := r.embedBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		r.log.Warn("embedding.remote.retry", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (r *RemoteAPI) embedBatch(ctx context.Context, batch []string) ([][]float32, bool, error) {
	body, err := json.Marshal(remoteEmbedRequest{Input: batch, Model: r.cfg.ModelID})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, true, err // network errors are transient
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, raw)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, raw)
	}

	var parsed remoteEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode embedding response: %w", err)
	}

	vecs := make([][]float32, len(batch))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			continue
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, false, nil
}

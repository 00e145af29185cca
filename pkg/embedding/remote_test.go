// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteAPI_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := remoteEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 0.5}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := DefaultConfig(2, "remote-test")
	cfg.MaxBatchSize = 2
	p := NewRemoteAPI(cfg, RemoteAPIOptions{Endpoint: srv.URL})

	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, []float32{0, 0.5}, vecs[0])
	require.Equal(t, []float32{1, 0.5}, vecs[1])
	require.Equal(t, []float32{0, 0.5}, vecs[2]) // batch 2 restarts index at 0
}

func TestRemoteAPI_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := remoteEmbedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{{Embedding: []float32{1, 2}, Index: 0}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewRemoteAPI(DefaultConfig(2, "remote-test"), RemoteAPIOptions{Endpoint: srv.URL})

	vecs, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vecs[0])
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRemoteAPI_DoesNotRetryOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewRemoteAPI(DefaultConfig(2, "remote-test"), RemoteAPIOptions{Endpoint: srv.URL})

	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

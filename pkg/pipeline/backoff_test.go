// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffConfig_DoublesUpToMax(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2.0}

	require.Equal(t, time.Second, cfg.Backoff(0))
	require.Equal(t, 2*time.Second, cfg.Backoff(1))
	require.Equal(t, 4*time.Second, cfg.Backoff(2))
	require.Equal(t, 8*time.Second, cfg.Backoff(3))
	require.Equal(t, 10*time.Second, cfg.Backoff(4), "capped at Max")
	require.Equal(t, 10*time.Second, cfg.Backoff(20), "stays capped")
}

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()
	require.Equal(t, time.Second, cfg.Initial)
	require.Equal(t, 60*time.Second, cfg.Max)
	require.Equal(t, 2.0, cfg.Multiplier)
}

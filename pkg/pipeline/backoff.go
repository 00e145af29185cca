// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "time"

// BackoffConfig is the retry-queue backoff policy for files whose
// embedding or graph-store write failed: Initial on the first retry,
// scaled by Multiplier each subsequent attempt up to Max.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig starts at 1s, doubles each attempt, and caps at
// 60s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: 60 * time.Second, Multiplier: 2.0}
}

// Backoff computes the delay before retry attempt n (0-indexed: n=0 is the
// first retry, delayed by Initial).
func (c BackoffConfig) Backoff(n int) time.Duration {
	d := float64(c.Initial)
	for i := 0; i < n; i++ {
		d *= c.Multiplier
		if d >= float64(c.Max) {
			return c.Max
		}
	}
	return time.Duration(d)
}

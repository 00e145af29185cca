// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker's internal state, distinct from the
// daemon-level State above.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreakerConfig names the thresholds the circuit breaker applies:
// open after FailureThreshold consecutive failures, let trial calls through
// after Timeout, close again after SuccessThreshold consecutive trial
// successes.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultCircuitBreakerConfig returns sane defaults: trip after 5
// consecutive failures, probe again after 10s, require 2 consecutive
// successes to fully close.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 10 * time.Second}
}

// CircuitBreaker guards a downstream dependency (the embedding provider, an
// external parser call) from repeated calls while it is failing. It is
// implemented as its own reusable unit, independent of any one provider
// call site, using the standard open/half-open/closed state machine.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed CircuitBreaker with cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: breakerClosed}
}

// Allow reports whether a call may proceed: always when closed, never while
// open and still within Timeout; once open past Timeout it turns half-open
// and every call is allowed until a trial outcome closes or reopens it.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(cb.openedAt) >= cb.cfg.Timeout {
			cb.state = breakerHalfOpen
			cb.successes = 0
			return true
		}
		return false
	}
	return false
}

// RecordSuccess reports a successful call, closing the breaker once enough
// consecutive half-open trials succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = breakerClosed
			cb.failures = 0
			cb.successes = 0
		}
	case breakerClosed:
		cb.failures = 0
	}
}

// RecordFailure reports a failed call, opening the breaker once
// FailureThreshold consecutive failures accumulate (or immediately, on any
// failure while half-open).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		cb.state = breakerOpen
		cb.openedAt = now()
		cb.successes = 0
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = breakerOpen
			cb.openedAt = now()
		}
	}
}

// IsOpen reports whether the breaker is currently open (rejecting calls).
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == breakerOpen
}

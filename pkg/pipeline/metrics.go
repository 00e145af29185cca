// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the pipeline's Prometheus instruments. Registration is
// lazy and idempotent (via sync.Once) so constructing a Processor in a
// test doesn't panic on double-registration against the default registry.
type metrics struct {
	once sync.Once

	filesIndexed prometheus.Counter
	filesSkipped prometheus.Counter
	filesFailed  prometheus.Counter
	filesDeleted prometheus.Counter

	embedComputed prometheus.Counter
	embedSkipped  prometheus.Counter

	batchesProcessed prometheus.Counter

	parseDuration prometheus.Histogram
	applyDuration prometheus.Histogram
}

var pipelineMetrics metrics

func (m *metrics) init() {
	m.once.Do(func() {
		m.filesIndexed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_files_indexed_total", Help: "Files successfully parsed and applied.",
		})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_files_skipped_total", Help: "Files skipped because their content hash was unchanged.",
		})
		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_files_failed_total", Help: "Files that failed to parse and were marked index_failed.",
		})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_files_deleted_total", Help: "Files removed from the graph store in response to a delete event.",
		})
		m.embedComputed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_embeddings_computed_total", Help: "Embeddings computed during Apply.",
		})
		m.embedSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_embeddings_skipped_total", Help: "Embedding calls skipped because the circuit breaker was open.",
		})
		m.batchesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_pipeline_batches_processed_total", Help: "Batches run through ProcessBatch.",
		})
		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "codegraph_pipeline_parse_seconds", Help: "Parse-stage duration: one parallel pass per batch, one file per reconciler retry.", Buckets: buckets,
		})
		m.applyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "codegraph_pipeline_apply_seconds", Help: "Per-batch apply duration.", Buckets: buckets,
		})

		prometheus.MustRegister(
			m.filesIndexed, m.filesSkipped, m.filesFailed, m.filesDeleted,
			m.embedComputed, m.embedSkipped,
			m.batchesProcessed,
			m.parseDuration, m.applyDuration,
		)
	})
}

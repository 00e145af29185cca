// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
	"github.com/kraklabs/codegraph/pkg/parser"
	"github.com/kraklabs/codegraph/pkg/vectorindex"
)

// FileStore is the subset of *store.Store the Processor needs across the
// Diff, Apply, and Resolve stages.
type FileStore interface {
	GraphWriter
	AddNode(ctx context.Context, n *entity.Node) error
	RemoveNode(ctx context.Context, id entity.ID) error
	AddEdge(ctx context.Context, e *entity.Edge) error
	RemoveEdgesFrom(ctx context.Context, id entity.ID) error
	PutFileMeta(ctx context.Context, m *entity.FileMetadata) error
	GetFileMeta(ctx context.Context, path string) (*entity.FileMetadata, error)
	RemoveFileMeta(ctx context.Context, path string) error
}

// Embedder is the narrow embedding capability the Processor needs; matched
// by *embedding.CachedProvider.
type Embedder interface {
	EmbedNode(ctx context.Context, n *entity.Node) ([]float32, error)
}

// Processor runs the Parse, Diff, Apply, and Resolve stages against one
// batch, applying the ordering guarantee (deletes fully applied
// before any insert in the same batch begins) and circuit-breaking /
// backing off embedding calls independently of graph writes, so an
// embedding-provider outage degrades search freshness without blocking
// graph updates.
type Processor struct {
	store    FileStore
	index    vectorindex.Index
	parser   *parser.Pool
	embedder Embedder
	breaker  *CircuitBreaker
	backoff  BackoffConfig
	log      *slog.Logger
}

// NewProcessor builds a Processor wired to the given store, vector index,
// parser pool, and embedder.
func NewProcessor(st FileStore, idx vectorindex.Index, pool *parser.Pool, embedder Embedder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	pipelineMetrics.init()
	return &Processor{
		store:    st,
		index:    idx,
		parser:   pool,
		embedder: embedder,
		breaker:  NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		backoff:  DefaultBackoffConfig(),
		log:      logger,
	}
}

// upsertPlan carries the per-file state the Diff stage computes before
// parsing: the new content hash, detected language, and whatever
// file_meta record the last index left behind.
type upsertPlan struct {
	ev      FileEvent
	hash    string
	lang    entity.Language
	oldMeta *entity.FileMetadata
}

// ProcessBatch applies every delete in batch, then every upsert, so a
// removed entity is never resurrected by a same-id upsert later in the
// same batch. The batch's surviving upsert paths are parsed in parallel
// across the parser pool's workers; diffs are then applied serially in
// plan order, so per-path ordering is unaffected by parse completion
// order (a path appears at most once per batch after debouncing). A
// single file's failure is logged and does not abort the rest of the
// batch. It returns the first fatal-classified error encountered (a
// storage-corruption signal), if any, so the caller can transition the
// daemon to StateError; non-fatal per-file errors never propagate here.
func (p *Processor) ProcessBatch(ctx context.Context, batch Batch) error {
	start := time.Now()
	defer func() {
		pipelineMetrics.batchesProcessed.Inc()
		pipelineMetrics.applyDuration.Observe(time.Since(start).Seconds())
	}()

	var fatal error
	noteErr := func(path string, err error) {
		p.log.Warn("pipeline.file_failed", "path", path, "err", err)
		if fatal == nil && cgerrors.IsFatal(err) {
			fatal = err
		}
	}

	for _, ev := range batch.Deletes {
		if err := p.processDelete(ctx, ev); err != nil {
			noteErr(ev.Path, err)
		}
	}

	// Diff pre-pass: decide which upserts actually need a parse. Vanished
	// files turn into deletes here; unchanged and unsupported files drop
	// out.
	plans := make([]*upsertPlan, 0, len(batch.Upserts))
	for _, ev := range batch.Upserts {
		plan, err := p.planUpsert(ctx, ev)
		if err != nil {
			noteErr(ev.Path, err)
			continue
		}
		if plan != nil {
			plans = append(plans, plan)
		}
	}
	if len(plans) == 0 {
		return fatal
	}

	// Parse stage: every surviving path in parallel across the pool.
	paths := make([]string, len(plans))
	for i, plan := range plans {
		paths[i] = plan.ev.Path
	}
	parseStart := time.Now()
	results, err := p.parser.ParseFiles(ctx, paths)
	pipelineMetrics.parseDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		// Only context cancellation surfaces here; per-file errors are in
		// the results themselves.
		p.log.Warn("pipeline.parse_interrupted", "err", err)
	}

	// Apply stage: serial, in plan order.
	for i, res := range results {
		plan := plans[i]
		if res.Err != nil {
			pipelineMetrics.filesFailed.Inc()
			p.markFailed(ctx, plan.ev.Path, plan.lang, plan.oldMeta)
			noteErr(plan.ev.Path, res.Err)
			continue
		}
		if err := p.applyExtraction(ctx, plan, res.Result); err != nil {
			noteErr(plan.ev.Path, err)
		}
	}
	return fatal
}

func (p *Processor) processDelete(ctx context.Context, ev FileEvent) error {
	meta, err := p.store.GetFileMeta(ctx, ev.Path)
	if err != nil {
		if cg, ok := err.(*cgerrors.Error); ok && cg.Code == cgerrors.CodeNotFound {
			return nil
		}
		return err
	}
	for _, id := range meta.NodeIDs {
		if err := p.store.RemoveNode(ctx, id); err != nil {
			p.log.Warn("pipeline.remove_node_failed", "id", id, "err", err)
		}
		p.index.Remove(id)
	}
	pipelineMetrics.filesDeleted.Inc()
	return p.store.RemoveFileMeta(ctx, ev.Path)
}

// planUpsert runs the pre-parse half of the Diff stage for one event. A
// nil plan with a nil error means the file needs no work: its content
// hash is unchanged, its extension is unsupported, or it vanished and was
// handled as a delete instead.
func (p *Processor) planUpsert(ctx context.Context, ev FileEvent) (*upsertPlan, error) {
	newHash, err := hashFile(ev.Path)
	if err != nil {
		// File vanished between debounce and processing (e.g. rapid
		// create-then-delete); treat it as a delete instead.
		return nil, p.processDelete(ctx, FileEvent{Path: ev.Path, Change: Deleted, At: ev.At})
	}

	oldMeta, err := p.store.GetFileMeta(ctx, ev.Path)
	hadOld := err == nil
	if hadOld && !oldMeta.IndexFailed && oldMeta.ContentHash == newHash {
		pipelineMetrics.filesSkipped.Inc()
		return nil, nil // no-op re-index
	}

	lang, err := parser.LanguageForPath(ev.Path)
	if err != nil {
		// Unsupported extensions are not failures; the file is simply
		// never indexed.
		return nil, nil
	}

	plan := &upsertPlan{ev: ev, hash: newHash, lang: lang}
	if hadOld {
		plan.oldMeta = oldMeta
	}
	return plan, nil
}

// processUpsert runs one file through the full plan/parse/apply path
// inline, for callers outside a batch (the reconciler's per-file retry).
func (p *Processor) processUpsert(ctx context.Context, ev FileEvent) error {
	plan, err := p.planUpsert(ctx, ev)
	if err != nil || plan == nil {
		return err
	}

	parseStart := time.Now()
	res, err := p.parser.ParseFile(ctx, plan.ev.Path)
	pipelineMetrics.parseDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		pipelineMetrics.filesFailed.Inc()
		p.markFailed(ctx, plan.ev.Path, plan.lang, plan.oldMeta)
		return err
	}
	return p.applyExtraction(ctx, plan, res)
}

// applyExtraction runs the Apply and Resolve stages for one successfully
// parsed file: remove the previous parse's nodes, insert the fresh ones
// (embedding each new node inline, behind the circuit breaker), resolve what edges
// can be resolved, and record the new file_meta.
func (p *Processor) applyExtraction(ctx context.Context, plan *upsertPlan, res *parser.ExtractionResult) error {
	if plan.oldMeta != nil {
		for _, id := range plan.oldMeta.NodeIDs {
			if err := p.store.RemoveEdgesFrom(ctx, id); err != nil {
				p.log.Warn("pipeline.remove_edges_failed", "id", id, "err", err)
			}
			if err := p.store.RemoveNode(ctx, id); err != nil {
				p.log.Warn("pipeline.remove_node_failed", "id", id, "err", err)
			}
			p.index.Remove(id)
		}
	}

	ids := make([]entity.ID, 0, len(res.Nodes))
	embedFailed := false
	for _, n := range res.Nodes {
		if err := p.store.AddNode(ctx, n); err != nil {
			p.log.Warn("pipeline.add_node_failed", "id", n.ID, "err", err)
			continue
		}
		ids = append(ids, n.ID)

		if n.Content == "" {
			continue
		}
		if !p.breaker.Allow() {
			pipelineMetrics.embedSkipped.Inc()
			embedFailed = true
			continue
		}
		vec, err := p.embedder.EmbedNode(ctx, n)
		if err != nil {
			p.breaker.RecordFailure()
			embedFailed = true
			continue
		}
		p.breaker.RecordSuccess()
		pipelineMetrics.embedComputed.Inc()
		if len(vec) > 0 {
			if err := p.index.Add(n.ID, vec); err != nil {
				p.log.Warn("pipeline.vector_add_failed", "id", n.ID, "err", err)
			}
		}
	}

	ResolveEdges(ctx, p.store, res.Edges, plan.ev.Path)
	for _, e := range res.Edges {
		if err := p.store.AddEdge(ctx, e); err != nil {
			p.log.Warn("pipeline.add_edge_failed", "from", e.From, "err", err)
		}
	}

	meta := &entity.FileMetadata{
		Path:        plan.ev.Path,
		LastIndexed: now(),
		ContentHash: plan.hash,
		NodeCount:   len(ids),
		Language:    plan.lang,
		NodeIDs:     ids,
		IndexFailed: embedFailed,
	}
	pipelineMetrics.filesIndexed.Inc()
	return p.store.PutFileMeta(ctx, meta)
}

// markFailed flags path for the reconciler. The previous record's node ids
// are carried over so a later successful re-parse (or a delete event) can
// still prune the nodes the last good parse produced; the content hash is
// cleared to force the next attempt through the full parse path.
func (p *Processor) markFailed(ctx context.Context, path string, lang entity.Language, prev *entity.FileMetadata) {
	meta := &entity.FileMetadata{Path: path, LastIndexed: now(), Language: lang, IndexFailed: true}
	if prev != nil {
		meta.NodeIDs = prev.NodeIDs
		meta.NodeCount = prev.NodeCount
	}
	if err := p.store.PutFileMeta(ctx, meta); err != nil {
		p.log.Warn("pipeline.mark_failed_error", "path", path, "err", err)
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/concurrent"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// ioRetryAttempts and ioRetryBase implement the exponential backoff this
// store applies around transient I/O errors from the Badger backend.
const (
	ioRetryAttempts = 3
	ioRetryBase     = 20 * time.Millisecond
)

// adjacency is a snapshot of the outgoing edge index, keyed by source node
// id. It is held behind a concurrent.RCU cell so readers (shortest_path,
// neighbors fan-out during tool execution) never block on a concurrent
// writer.
type adjacency map[entity.ID][]entity.ID

// Store is the graph store: a durable Badger-backed key-value log fronted
// by a hot in-process node cache and a lock-free adjacency index (see
// DESIGN.md for the choice of Badger over a Datalog-style embedded store).
type Store struct {
	db  *badger.DB
	log *slog.Logger

	hotNodes sync.Map // entity.ID -> *entity.Node

	adjMu sync.Mutex // serializes adjacency.Update callers; RCU itself is lock-free for readers
	adj   *concurrent.RCU[adjacency]

	edgeSeq sync.Map // entity.ID -> *atomic.Uint64, next edge sequence number per source node

	nodeCache  NodeCacheInvalidator
	queryCache QueryCacheInvalidator
}

// NodeCacheInvalidator is the subset of pkg/cache.NodeCache the store
// notifies on every successful add_node/update_node/remove_node: the
// cached entry for that id is evicted.
type NodeCacheInvalidator interface {
	Invalidate(id entity.ID)
}

// QueryCacheInvalidator is the subset of pkg/cache.QueryCache the store
// clears on every successful node write (AddNode/RemoveNode). The whole cache goes: cached queries
// cannot be cheaply mapped back to the writes that would invalidate them.
type QueryCacheInvalidator interface {
	Clear()
}

// Config configures a Store.
type Config struct {
	// Dir is the on-disk directory for the Badger log, normally
	// <project_root>/.codegraph/db.
	Dir string
	// Logger receives structured store events. Defaults to slog.Default().
	Logger *slog.Logger
	// NodeCache, if set, is invalidated for id on every successful
	// add_node/update_node/remove_node.
	NodeCache NodeCacheInvalidator
	// QueryCache, if set, is cleared on every successful node add/update/
	// remove, since a single such write can change the answer to any previously cached query.
	QueryCache QueryCacheInvalidator
}

// Open opens (creating if absent) the graph store at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, translateOpenErr(err)
	}

	s := &Store{
		db:         db,
		log:        logger,
		adj:        concurrent.NewRCU[adjacency](adjacency{}),
		nodeCache:  cfg.NodeCache,
		queryCache: cfg.QueryCache,
	}
	if err := s.loadAdjacency(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info("store.open", "dir", cfg.Dir)
	return s, nil
}

// Close releases the underlying Badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func translateOpenErr(err error) error {
	if errors.Is(err, badger.ErrTruncateNeeded) {
		return cgerrors.StorageCorruption(err)
	}
	return cgerrors.StorageLocked(err.Error())
}

// withRetry runs op, retrying transaction conflicts (badger.ErrConflict)
// with exponential backoff before giving up.
func withRetry(ctx context.Context, op func() error) error {
	delay := ioRetryBase
	var lastErr error
	for attempt := 0; attempt < ioRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, badger.ErrConflict) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// invalidateCaches runs the invalidation contract for a successful write
// touching id: evict id from the node cache and clear the query cache
// wholesale, since a single write can change the answer to any previously
// cached query.
func (s *Store) invalidateCaches(id entity.ID) {
	if s.nodeCache != nil {
		s.nodeCache.Invalidate(id)
	}
	if s.queryCache != nil {
		s.queryCache.Clear()
	}
}

// AddNode inserts or fully replaces a node record, its name index entry,
// and its hot-cache entry. Serves both add_node and update_node (the two
// share an implementation: both are idempotent upserts keyed by the node's
// deterministic id).
func (s *Store) AddNode(ctx context.Context, n *entity.Node) error {
	if err := n.Validate(); err != nil {
		return cgerrors.SchemaViolation(err.Error())
	}

	var prevName string
	hadPrev := false
	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			if item, err := txn.Get(nodeKey(n.ID)); err == nil {
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				prev, err := DecodeNode(raw)
				if err != nil {
					return err
				}
				prevName = prev.Name
				hadPrev = true
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if hadPrev && prevName != n.Name {
				if err := txn.Delete(nameIdxKey(prevName, n.ID)); err != nil {
					return err
				}
			}
			if err := txn.Set(nameIdxKey(n.Name, n.ID), nil); err != nil {
				return err
			}
			return txn.Set(nodeKey(n.ID), EncodeNode(n))
		})
	}); err != nil {
		return cgerrors.IOError(fmt.Errorf("add_node: %w", err))
	}

	s.hotNodes.Store(n.ID, n)
	s.invalidateCaches(n.ID)
	return nil
}

// GetNode retrieves a node by id, consulting the hot cache first.
func (s *Store) GetNode(ctx context.Context, id entity.ID) (*entity.Node, error) {
	if cached, ok := s.hotNodes.Load(id); ok {
		return cached.(*entity.Node), nil
	}

	var n *entity.Node
	err := withRetry(ctx, func() error {
		return s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(nodeKey(id))
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			decoded, err := DecodeNode(raw)
			if err != nil {
				return err
			}
			n = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, cgerrors.NotFound(fmt.Sprintf("node %s", id.String()))
	}
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("get_node: %w", err))
	}

	s.hotNodes.Store(id, n)
	return n, nil
}

// RemoveNode deletes a node, its name index entry, its outgoing edges, and
// evicts it from the node/query caches and drops its own outgoing adjacency
// entry; other nodes' edges that point at it are kept.
func (s *Store) RemoveNode(ctx context.Context, id entity.ID) error {
	var name string
	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(nodeKey(id))
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err := DecodeNode(raw)
			if err != nil {
				return err
			}
			name = n.Name

			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := edgePrefix(id)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().KeyCopy(nil)
				if err := txn.Delete(k); err != nil {
					return err
				}
			}

			if err := txn.Delete(nameIdxKey(name, id)); err != nil {
				return err
			}
			return txn.Delete(nodeKey(id))
		})
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return cgerrors.NotFound(fmt.Sprintf("node %s", id.String()))
		}
		return cgerrors.IOError(fmt.Errorf("remove_node: %w", err))
	}

	s.hotNodes.Delete(id)
	s.edgeSeq.Delete(id)
	s.adj.Update(func(cur adjacency) adjacency {
		next := make(adjacency, len(cur))
		for k, v := range cur {
			if k == id {
				continue
			}
			next[k] = v
		}
		return next
	})
	s.invalidateCaches(id)
	return nil
}

// FindByName returns every node id registered under name.
func (s *Store) FindByName(ctx context.Context, name string) ([]entity.ID, error) {
	var ids []entity.ID
	err := withRetry(ctx, func() error {
		ids = ids[:0]
		return s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := nameIdxPrefix(name)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().Key()
				idStr := string(key[len(prefix):])
				id, err := entity.ParseID(idStr)
				if err != nil {
					continue
				}
				ids = append(ids, id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("find_by_name: %w", err))
	}
	return ids, nil
}

// AddEdge appends an edge from e.From, assigning it the next monotonic
// sequence number for that source node, and updates the adjacency index
// when the edge's target is already resolved.
func (s *Store) AddEdge(ctx context.Context, e *entity.Edge) error {
	seq := s.nextEdgeSeq(e.From)
	e.Seq = seq

	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(edgeKey(e.From, seq), EncodeEdge(e))
		})
	}); err != nil {
		return cgerrors.IOError(fmt.Errorf("add_edge: %w", err))
	}

	if e.To.Resolved() {
		target := *e.To.ResolvedID
		s.adj.Update(func(cur adjacency) adjacency {
			next := make(adjacency, len(cur)+1)
			for k, v := range cur {
				next[k] = v
			}
			next[e.From] = append(append([]entity.ID{}, cur[e.From]...), target)
			return next
		})
	}
	return nil
}

func (s *Store) nextEdgeSeq(from entity.ID) uint64 {
	v, _ := s.edgeSeq.LoadOrStore(from, new(atomic.Uint64))
	counter := v.(*atomic.Uint64)
	return counter.Add(1)
}

// Neighbors returns every outgoing edge from id, in insertion order.
func (s *Store) Neighbors(ctx context.Context, from entity.ID) ([]*entity.Edge, error) {
	var edges []*entity.Edge
	err := withRetry(ctx, func() error {
		edges = edges[:0]
		return s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := edgePrefix(from)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				raw, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				e, err := DecodeEdge(raw)
				if err != nil {
					return err
				}
				edges = append(edges, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("neighbors: %w", err))
	}
	return edges, nil
}

// AllNodes returns every node currently persisted, for tools that need a
// whole-graph view (hub nodes, complexity hotspots, coupling metrics,
// circular-dependency detection). It scans the durable log directly rather
// than the hot cache, since the hot cache may not hold cold entries.
func (s *Store) AllNodes(ctx context.Context) ([]*entity.Node, error) {
	var nodes []*entity.Node
	err := withRetry(ctx, func() error {
		nodes = nodes[:0]
		return s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := []byte(prefixNode)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				raw, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				n, err := DecodeNode(raw)
				if err != nil {
					continue
				}
				nodes = append(nodes, n)
			}
			return nil
		})
	})
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("all_nodes: %w", err))
	}
	return nodes, nil
}

// AdjacencySnapshot returns a point-in-time copy of the resolved-edge
// adjacency index (id -> outgoing neighbor ids), read lock-free off the
// RCU cell. Callers that also need edge types/weights should use
// Neighbors per node instead.
func (s *Store) AdjacencySnapshot() map[entity.ID][]entity.ID {
	snap := s.adj.Load()
	out := make(map[entity.ID][]entity.ID, len(snap))
	for k, v := range snap {
		out[k] = append([]entity.ID(nil), v...)
	}
	return out
}

// PutFileMeta writes (or replaces) the file_meta record for m.Path. The
// diff stage compares each new extraction against this record's node set.
func (s *Store) PutFileMeta(ctx context.Context, m *entity.FileMetadata) error {
	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(fileMetaKey(m.Path), EncodeFileMeta(m))
		})
	}); err != nil {
		return cgerrors.IOError(fmt.Errorf("put_file_meta: %w", err))
	}
	return nil
}

// GetFileMeta returns the file_meta record for path, or NotFound if the
// path has never been indexed.
func (s *Store) GetFileMeta(ctx context.Context, path string) (*entity.FileMetadata, error) {
	var m *entity.FileMetadata
	err := withRetry(ctx, func() error {
		return s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(fileMetaKey(path))
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			decoded, err := DecodeFileMeta(raw)
			if err != nil {
				return err
			}
			m = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, cgerrors.NotFound(fmt.Sprintf("file_meta %s", path))
	}
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("get_file_meta: %w", err))
	}
	return m, nil
}

// RemoveFileMeta deletes the file_meta record for path, run after every
// node belonging to a deleted file has been removed.
func (s *Store) RemoveFileMeta(ctx context.Context, path string) error {
	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(fileMetaKey(path))
		})
	}); err != nil {
		return cgerrors.IOError(fmt.Errorf("remove_file_meta: %w", err))
	}
	return nil
}

// FailedFiles returns the path of every file_meta record currently
// marked index_failed, for the change pipeline's reconciler to retry.
func (s *Store) FailedFiles(ctx context.Context) ([]string, error) {
	var paths []string
	err := withRetry(ctx, func() error {
		paths = paths[:0]
		return s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := []byte(prefixFile)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				raw, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				m, err := DecodeFileMeta(raw)
				if err != nil {
					continue
				}
				if m.IndexFailed {
					paths = append(paths, m.Path)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, cgerrors.IOError(fmt.Errorf("failed_files: %w", err))
	}
	return paths, nil
}

// RemoveEdgesFrom deletes every persisted edge whose source is id, and
// drops id's adjacency entry. Used by the diff stage when re-resolving a
// node's outgoing edges on re-parse, ahead of re-adding the fresh set.
func (s *Store) RemoveEdgesFrom(ctx context.Context, id entity.ID) error {
	if err := withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := edgePrefix(id)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
					return err
				}
			}
			return nil
		})
	}); err != nil {
		return cgerrors.IOError(fmt.Errorf("remove_edges_from: %w", err))
	}
	s.edgeSeq.Delete(id)
	s.adj.Update(func(cur adjacency) adjacency {
		next := make(adjacency, len(cur))
		for k, v := range cur {
			if k == id {
				continue
			}
			next[k] = v
		}
		return next
	})
	return nil
}

// loadAdjacency rebuilds the in-memory adjacency index from the durable
// edge log, run once at Open. It also seeds the per-source sequence
// counters from the highest persisted seq, so edges appended after a
// restart never collide with ones already on disk.
func (s *Store) loadAdjacency() error {
	built := adjacency{}
	maxSeq := map[entity.ID]uint64{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixEdge)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := DecodeEdge(raw)
			if err != nil {
				continue
			}
			if e.Seq > maxSeq[e.From] {
				maxSeq[e.From] = e.Seq
			}
			if e.To.Resolved() {
				built[e.From] = append(built[e.From], *e.To.ResolvedID)
			}
		}
		return nil
	})
	if err != nil {
		return cgerrors.IOError(fmt.Errorf("load_adjacency: %w", err))
	}
	s.adj.Store(built)
	for from, seq := range maxSeq {
		counter := new(atomic.Uint64)
		counter.Store(seq)
		s.edgeSeq.Store(from, counter)
	}
	return nil
}

// ShortestPath runs an unweighted breadth-first search over the adjacency
// index, returning the node id path from `from` to `to` inclusive, or
// (nil, nil) when `to` is unreachable.
func (s *Store) ShortestPath(ctx context.Context, from, to entity.ID) ([]entity.ID, error) {
	if from == to {
		return []entity.ID{from}, nil
	}
	snapshot := s.adj.Load()

	type frame struct {
		id   entity.ID
		prev *frame
	}
	visited := map[entity.ID]bool{from: true}
	queue := []*frame{{id: from}}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		cur := queue[0]
		queue = queue[1:]

		for _, next := range snapshot[cur.id] {
			if visited[next] {
				continue
			}
			f := &frame{id: next, prev: cur}
			if next == to {
				path := []entity.ID{}
				for n := f; n != nil; n = n.prev {
					path = append([]entity.ID{n.id}, path...)
				}
				return path, nil
			}
			visited[next] = true
			queue = append(queue, f)
		}
	}
	return nil, nil
}

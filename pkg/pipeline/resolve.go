// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"

	"github.com/kraklabs/codegraph/pkg/entity"
	"github.com/kraklabs/codegraph/pkg/store"
)

// GraphWriter is the subset of *store.Store the Resolve stage needs,
// narrowed so tests (processor_test.go's fakeStore) can fake it without a real Badger instance.
type GraphWriter interface {
	FindByName(ctx context.Context, name string) ([]entity.ID, error)
	GetNode(ctx context.Context, id entity.ID) (*entity.Node, error)
}

var _ GraphWriter = (*store.Store)(nil)

// ResolveEdges attempts to resolve every still-unresolved edge in edges
// against st, applying a fixed preference order: an exact file-scoped
// match beats a module/package-qualified match, which beats a bare
// unique-name match;
// otherwise the edge is left unresolved for a later pass once more of the
// project has been indexed. sourceFile is the file the edge's From node
// lives in, used for the file-scoped preference.
func ResolveEdges(ctx context.Context, st GraphWriter, edges []*entity.Edge, sourceFile string) {
	for _, e := range edges {
		if e.To.Resolved() {
			continue
		}
		resolved, ok := resolveSymbol(ctx, st, e.To.Symbol, sourceFile)
		if ok {
			e.To = entity.NodeTarget(resolved)
		}
	}
}

// resolveSymbol looks up every node registered under name and picks one by
// the file-scoped > qualified > unique preference order. "Qualified" has no
// separate signal in the current edge representation (callee names are
// extracted as simple identifiers, not dotted paths) so in practice this
// reduces to file-scoped, then unique; a future parser enhancement that
// retains qualification on the callee string would extend the middle tier
// without changing this function's contract.
func resolveSymbol(ctx context.Context, st GraphWriter, name, sourceFile string) (entity.ID, bool) {
	candidates, err := st.FindByName(ctx, name)
	if err != nil || len(candidates) == 0 {
		return entity.ID{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	for _, id := range candidates {
		n, err := st.GetNode(ctx, id)
		if err != nil {
			continue
		}
		if n.Location.FilePath == sourceFile {
			return id, true
		}
	}

	// More than one candidate and none file-scoped: ambiguous, stays
	// unresolved rather than guessing.
	return entity.ID{}, false
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
)

var getTransitiveDependenciesTool = Tool{
	Name:        "get_transitive_dependencies",
	Description: "BFS over outbound edges of a given type, up to a depth bound.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"node_id": {"type": "string"},
			"edge_type": {"type": "string"},
			"depth": {"type": "integer", "minimum": 1}
		},
		"required": ["node_id", "edge_type", "depth"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "string"}}`),
}

var getReverseDependenciesTool = Tool{
	Name:         "get_reverse_dependencies",
	Description:  "BFS over inbound edges of a given type, up to a depth bound.",
	InputSchema:  getTransitiveDependenciesTool.InputSchema,
	OutputSchema: getTransitiveDependenciesTool.OutputSchema,
}

var traceCallChainTool = Tool{
	Name:        "trace_call_chain",
	Description: "Shortest path over Calls edges between two nodes.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"from": {"type": "string"},
			"to": {"type": "string"},
			"max_depth": {"type": "integer", "minimum": 1}
		},
		"required": ["from", "to"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "string"}}`),
}

// DepthArgs is the common shape of get_transitive_dependencies and
// get_reverse_dependencies.
type DepthArgs struct {
	NodeID   string `json:"node_id"`
	EdgeType string `json:"edge_type"`
	Depth    int    `json:"depth"`
}

func (e *Executor) getTransitiveDependencies(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[DepthArgs](input)
	if err != nil {
		return errResult(err)
	}
	id, err := entity.ParseID(args.NodeID)
	if err != nil {
		return errResult(cgerrors.InvalidID(args.NodeID))
	}
	ids, err := e.bfsForward(ctx, id, entity.EdgeType(args.EdgeType), args.Depth)
	if err != nil {
		return errResult(err)
	}
	return okResult(idStrings(ids))
}

func (e *Executor) getReverseDependencies(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[DepthArgs](input)
	if err != nil {
		return errResult(err)
	}
	id, err := entity.ParseID(args.NodeID)
	if err != nil {
		return errResult(cgerrors.InvalidID(args.NodeID))
	}
	reverse, err := e.reverseAdjacency(ctx, entity.EdgeType(args.EdgeType))
	if err != nil {
		return errResult(err)
	}
	ids := bfsBounded(id, args.Depth, func(cur entity.ID) []entity.ID { return reverse[cur] })
	return okResult(idStrings(ids))
}

// TraceCallChainArgs is the decoded input of trace_call_chain.
type TraceCallChainArgs struct {
	From     string `json:"from"`
	To       string `json:"to"`
	MaxDepth int    `json:"max_depth"`
}

func (e *Executor) traceCallChain(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[TraceCallChainArgs](input)
	if err != nil {
		return errResult(err)
	}
	from, err := entity.ParseID(args.From)
	if err != nil {
		return errResult(cgerrors.InvalidID(args.From))
	}
	to, err := entity.ParseID(args.To)
	if err != nil {
		return errResult(cgerrors.InvalidID(args.To))
	}

	forward, err := e.forwardAdjacency(ctx, entity.EdgeCalls)
	if err != nil {
		return errResult(err)
	}
	path := bfsPath(from, to, args.MaxDepth, func(cur entity.ID) []entity.ID { return forward[cur] })
	if path == nil {
		return okResult([]string{})
	}
	return okResult(idStrings(path))
}

// bfsForward walks neighbors(id) filtered to edgeType up to depth levels,
// excluding the start node itself from the result.
func (e *Executor) bfsForward(ctx context.Context, start entity.ID, edgeType entity.EdgeType, depth int) ([]entity.ID, error) {
	visited := map[entity.ID]bool{start: true}
	frontier := []entity.ID{start}
	var out []entity.ID

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []entity.ID
		for _, id := range frontier {
			edges, err := e.Store.Neighbors(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				if edgeType != "" && edge.EdgeType != edgeType {
					continue
				}
				if !edge.To.Resolved() {
					continue
				}
				target := *edge.To.ResolvedID
				if visited[target] {
					continue
				}
				visited[target] = true
				out = append(out, target)
				next = append(next, target)
			}
		}
		frontier = next
	}
	return out, nil
}

// forwardAdjacency materializes the whole-graph forward adjacency index
// filtered to edgeType, for algorithms (trace_call_chain) that need
// repeated lookups rather than one bounded BFS.
func (e *Executor) forwardAdjacency(ctx context.Context, edgeType entity.EdgeType) (map[entity.ID][]entity.ID, error) {
	nodes, err := e.Store.AllNodes(ctx)
	if err != nil {
		return nil, err
	}
	adj := make(map[entity.ID][]entity.ID, len(nodes))
	for _, n := range nodes {
		edges, err := e.Store.Neighbors(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if edgeType != "" && edge.EdgeType != edgeType {
				continue
			}
			if !edge.To.Resolved() {
				continue
			}
			adj[n.ID] = append(adj[n.ID], *edge.To.ResolvedID)
		}
	}
	return adj, nil
}

// reverseAdjacency is forwardAdjacency with every edge flipped, used by
// get_reverse_dependencies and calculate_coupling_metrics' fan-in.
func (e *Executor) reverseAdjacency(ctx context.Context, edgeType entity.EdgeType) (map[entity.ID][]entity.ID, error) {
	forward, err := e.forwardAdjacency(ctx, edgeType)
	if err != nil {
		return nil, err
	}
	reverse := make(map[entity.ID][]entity.ID, len(forward))
	for from, targets := range forward {
		for _, to := range targets {
			reverse[to] = append(reverse[to], from)
		}
	}
	return reverse, nil
}

// bfsBounded is the shared depth-bounded BFS body behind
// get_transitive_dependencies and get_reverse_dependencies.
func bfsBounded(start entity.ID, depth int, neighbors func(entity.ID) []entity.ID) []entity.ID {
	visited := map[entity.ID]bool{start: true}
	frontier := []entity.ID{start}
	var out []entity.ID

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []entity.ID
		for _, id := range frontier {
			for _, n := range neighbors(id) {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return out
}

// bfsPath finds the shortest path from -> to over neighbors, bounded by
// maxDepth edges (0 means unbounded). Returns nil if unreachable.
func bfsPath(from, to entity.ID, maxDepth int, neighbors func(entity.ID) []entity.ID) []entity.ID {
	if from == to {
		return []entity.ID{from}
	}
	type frame struct {
		id   entity.ID
		prev *frame
		dist int
	}
	visited := map[entity.ID]bool{from: true}
	queue := []*frame{{id: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.dist >= maxDepth {
			continue
		}
		for _, next := range neighbors(cur.id) {
			if visited[next] {
				continue
			}
			f := &frame{id: next, prev: cur, dist: cur.dist + 1}
			if next == to {
				path := []entity.ID{}
				for n := f; n != nil; n = n.prev {
					path = append([]entity.ID{n.id}, path...)
				}
				return path
			}
			visited[next] = true
			queue = append(queue, f)
		}
	}
	return nil
}

func idStrings(ids []entity.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
)

var detectCircularDependenciesTool = Tool{
	Name:        "detect_circular_dependencies",
	Description: "Strongly-connected components of size > 1, optionally restricted to a name/path scope.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {"scope": {"type": "string"}}
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "array", "items": {"type": "string"}}}`),
}

var calculateCouplingMetricsTool = Tool{
	Name:        "calculate_coupling_metrics",
	Description: "Fan-in, fan-out, and instability for a node.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {"node_id": {"type": "string"}},
		"required": ["node_id"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "object"}`),
}

var getHubNodesTool = Tool{
	Name:        "get_hub_nodes",
	Description: "Top-k nodes by degree (or a betweenness proxy).",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"k": {"type": "integer", "minimum": 1},
			"metric": {"type": "string", "enum": ["degree", "betweenness"]}
		},
		"required": ["k"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "object"}}`),
}

var findComplexityHotspotsTool = Tool{
	Name:        "find_complexity_hotspots",
	Description: "Top-k nodes by complexity score.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {"k": {"type": "integer", "minimum": 1}},
		"required": ["k"]
	}`),
	OutputSchema: json.RawMessage(`{"type": "array", "items": {"type": "object"}}`),
}

// ScopeArgs filters an operation to nodes whose name or file path contains
// Scope; empty Scope means the whole graph.
type ScopeArgs struct {
	Scope string `json:"scope"`
}

func (e *Executor) detectCircularDependencies(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[ScopeArgs](input)
	if err != nil {
		return errResult(err)
	}

	nodes, err := e.Store.AllNodes(ctx)
	if err != nil {
		return errResult(err)
	}
	adj, err := e.forwardAdjacency(ctx, "")
	if err != nil {
		return errResult(err)
	}

	inScope := make(map[entity.ID]bool, len(nodes))
	for _, n := range nodes {
		if matchesScope(n, args.Scope) {
			inScope[n.ID] = true
		}
	}

	sccs := tarjanSCC(nodes, adj)
	var cycles [][]string
	for _, scc := range sccs {
		if len(scc) <= 1 {
			continue
		}
		if args.Scope != "" {
			anyInScope := false
			for _, id := range scc {
				if inScope[id] {
					anyInScope = true
					break
				}
			}
			if !anyInScope {
				continue
			}
		}
		cycles = append(cycles, idStrings(scc))
	}
	return okResult(cycles)
}

func matchesScope(n *entity.Node, scope string) bool {
	if scope == "" {
		return true
	}
	return strings.Contains(n.Name, scope) || strings.Contains(n.Location.FilePath, scope)
}

// tarjanSCC computes strongly-connected components over adj using Tarjan's
// algorithm, iteratively (not recursively) to avoid stack overflow on deep
// call graphs.
func tarjanSCC(nodes []*entity.Node, adj map[entity.ID][]entity.ID) [][]entity.ID {
	index := 0
	indices := make(map[entity.ID]int)
	lowlink := make(map[entity.ID]int)
	onStack := make(map[entity.ID]bool)
	var stack []entity.ID
	var result [][]entity.ID

	type frame struct {
		id       entity.ID
		childIdx int
	}

	var strongconnect func(start entity.ID)
	strongconnect = func(start entity.ID) {
		var work []*frame
		work = append(work, &frame{id: start})
		indices[start] = index
		lowlink[start] = index
		index++
		stack = append(stack, start)
		onStack[start] = true

		for len(work) > 0 {
			top := work[len(work)-1]
			neighbors := adj[top.id]
			if top.childIdx < len(neighbors) {
				next := neighbors[top.childIdx]
				top.childIdx++
				if _, seen := indices[next]; !seen {
					indices[next] = index
					lowlink[next] = index
					index++
					stack = append(stack, next)
					onStack[next] = true
					work = append(work, &frame{id: next})
				} else if onStack[next] {
					if indices[next] < lowlink[top.id] {
						lowlink[top.id] = indices[next]
					}
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1]
				if lowlink[top.id] < lowlink[parent.id] {
					lowlink[parent.id] = lowlink[top.id]
				}
			}

			if lowlink[top.id] == indices[top.id] {
				var scc []entity.ID
				for {
					n := len(stack) - 1
					id := stack[n]
					stack = stack[:n]
					onStack[id] = false
					scc = append(scc, id)
					if id == top.id {
						break
					}
				}
				result = append(result, scc)
			}
		}
	}

	for _, n := range nodes {
		if _, seen := indices[n.ID]; !seen {
			strongconnect(n.ID)
		}
	}
	return result
}

// CouplingMetrics is calculate_coupling_metrics' output shape.
type CouplingMetrics struct {
	NodeID      string  `json:"node_id"`
	FanIn       int     `json:"fan_in"`
	FanOut      int     `json:"fan_out"`
	Instability float64 `json:"instability"`
}

func (e *Executor) calculateCouplingMetrics(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[struct {
		NodeID string `json:"node_id"`
	}](input)
	if err != nil {
		return errResult(err)
	}
	id, err := entity.ParseID(args.NodeID)
	if err != nil {
		return errResult(cgerrors.InvalidID(args.NodeID))
	}
	if _, err := e.Store.GetNode(ctx, id); err != nil {
		return errResult(err)
	}

	out, err := e.Store.Neighbors(ctx, id)
	if err != nil {
		return errResult(err)
	}
	fanOut := len(out)

	reverse, err := e.reverseAdjacency(ctx, "")
	if err != nil {
		return errResult(err)
	}
	fanIn := len(reverse[id])

	instability := 0.0
	if fanIn+fanOut > 0 {
		instability = float64(fanOut) / float64(fanIn+fanOut)
	}
	return okResult(CouplingMetrics{NodeID: args.NodeID, FanIn: fanIn, FanOut: fanOut, Instability: instability})
}

// HubNode is get_hub_nodes' per-result shape.
type HubNode struct {
	NodeID string  `json:"node_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

func (e *Executor) getHubNodes(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[struct {
		K      int    `json:"k"`
		Metric string `json:"metric"`
	}](input)
	if err != nil {
		return errResult(err)
	}
	if args.K <= 0 {
		args.K = 10
	}

	nodes, err := e.Store.AllNodes(ctx)
	if err != nil {
		return errResult(err)
	}
	reverse, err := e.reverseAdjacency(ctx, "")
	if err != nil {
		return errResult(err)
	}

	hubs := make([]HubNode, 0, len(nodes))
	for _, n := range nodes {
		edges, err := e.Store.Neighbors(ctx, n.ID)
		if err != nil {
			return errResult(err)
		}
		// Both metrics reduce to total degree (fan-in + fan-out): exact
		// betweenness centrality needs all-pairs shortest paths, too
		// costly for an interactive tool call, so degree stands in as the
		// betweenness proxy.
		score := float64(len(edges) + len(reverse[n.ID]))
		hubs = append(hubs, HubNode{NodeID: n.ID.String(), Name: n.Name, Score: score})
	}

	sort.Slice(hubs, func(i, j int) bool { return hubs[i].Score > hubs[j].Score })
	if len(hubs) > args.K {
		hubs = hubs[:args.K]
	}
	return okResult(hubs)
}

// ComplexityHotspot is find_complexity_hotspots' per-result shape.
type ComplexityHotspot struct {
	NodeID     string  `json:"node_id"`
	Name       string  `json:"name"`
	Complexity float32 `json:"complexity"`
	FilePath   string  `json:"file_path"`
}

func (e *Executor) findComplexityHotspots(ctx context.Context, input json.RawMessage) Result {
	args, err := decodeArgs[struct {
		K int `json:"k"`
	}](input)
	if err != nil {
		return errResult(err)
	}
	if args.K <= 0 {
		args.K = 10
	}

	nodes, err := e.Store.AllNodes(ctx)
	if err != nil {
		return errResult(err)
	}

	hotspots := make([]ComplexityHotspot, 0, len(nodes))
	for _, n := range nodes {
		if n.Complexity == nil {
			continue
		}
		hotspots = append(hotspots, ComplexityHotspot{
			NodeID: n.ID.String(), Name: n.Name, Complexity: *n.Complexity, FilePath: n.Location.FilePath,
		})
	}
	sort.Slice(hotspots, func(i, j int) bool { return hotspots[i].Complexity > hotspots[j].Complexity })
	if len(hotspots) > args.K {
		hotspots = hotspots[:args.K]
	}
	return okResult(hotspots)
}

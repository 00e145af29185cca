// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/kraklabs/codegraph/pkg/entity"
)

func TestNodeCountsByType(t *testing.T) {
	fn := entity.NodeFunction
	cls := entity.NodeClass
	nodes := []*entity.Node{
		{NodeType: &fn},
		{NodeType: &fn},
		{NodeType: &cls},
		{NodeType: nil},
	}

	counts := nodeCountsByType(nodes)

	if counts["function"] != 2 {
		t.Errorf("function count = %d, want 2", counts["function"])
	}
	if counts["class"] != 1 {
		t.Errorf("class count = %d, want 1", counts["class"])
	}
	if counts["unknown"] != 1 {
		t.Errorf("unknown count = %d, want 1", counts["unknown"])
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total != len(nodes) {
		t.Errorf("sum of counts = %d, want %d", total, len(nodes))
	}
}

func TestNodeCountsByType_Empty(t *testing.T) {
	counts := nodeCountsByType(nil)
	if len(counts) != 0 {
		t.Errorf("expected empty map, got %v", counts)
	}
}

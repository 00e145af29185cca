// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveNodeID_Deterministic(t *testing.T) {
	id1 := DeriveNodeID("proj", "lib.rs", "add", NodeFunction, 1)
	id2 := DeriveNodeID("proj", "lib.rs", "add", NodeFunction, 1)
	assert.Equal(t, id1, id2, "deriving the same entity twice must yield the same id")
}

func TestDeriveNodeID_DiffersOnRename(t *testing.T) {
	before := DeriveNodeID("proj", "lib.rs", "add", NodeFunction, 1)
	after := DeriveNodeID("proj", "lib.rs", "sum", NodeFunction, 1)
	assert.NotEqual(t, before, after)
}

func TestDeriveNodeID_PathNormalization(t *testing.T) {
	a := DeriveNodeID("proj", "./lib.rs", "add", NodeFunction, 1)
	b := DeriveNodeID("proj", "lib.rs", "add", NodeFunction, 1)
	assert.Equal(t, a, b, "./ prefix must not change identity")
}

func TestNewNode_SetsDeterministicID(t *testing.T) {
	loc := Location{FilePath: "lib.rs", Line: 1}
	nt := NodeFunction
	n := NewNode("proj", "add", &nt, nil, loc)
	require.NoError(t, n.Validate())
	assert.Equal(t, DeriveNodeID("proj", "lib.rs", "add", NodeFunction, 1), n.ID)
}

func TestLocation_ValidateInvariants(t *testing.T) {
	bad := Location{FilePath: "f", Line: 0}
	assert.Error(t, bad.Validate())

	end := uint32(1)
	bad2 := Location{FilePath: "f", Line: 5, EndLine: &end}
	assert.Error(t, bad2.Validate())

	end3 := uint32(5)
	good := Location{FilePath: "f", Line: 5, EndLine: &end3}
	assert.NoError(t, good.Validate())
}

func TestNode_ContentHashChangesWithContent(t *testing.T) {
	loc := Location{FilePath: "f", Line: 1}
	n := NewNode("proj", "x", nil, nil, loc)
	h1 := n.ContentHash()
	n.WithContent("fn x() {}")
	h2 := n.ContentHash()
	assert.NotEqual(t, h1, h2)
}

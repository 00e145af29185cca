// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/entity"
)

func TestEncodeDecodeNode_RoundTrip(t *testing.T) {
	nt := entity.NodeFunction
	lang := entity.LanguageGo
	endLine := uint32(12)
	n := entity.NewNode("proj", "Foo", &nt, &lang, entity.Location{FilePath: "pkg/a.go", Line: 10, Column: 2, EndLine: &endLine})
	n.Span = &entity.Span{StartByte: 100, EndByte: 200}
	n.Metadata = map[string]string{"visibility": "public"}
	n.WithContent("func Foo() {}")
	n.WithEmbedding([]float32{0.1, 0.2, 0.3})
	n.WithComplexity(4.5)

	decoded, err := DecodeNode(EncodeNode(n))
	require.NoError(t, err)

	require.Equal(t, n.ID, decoded.ID)
	require.Equal(t, n.Name, decoded.Name)
	require.Equal(t, *n.NodeType, *decoded.NodeType)
	require.Equal(t, *n.Language, *decoded.Language)
	require.Equal(t, n.Location.FilePath, decoded.Location.FilePath)
	require.Equal(t, *n.Location.EndLine, *decoded.Location.EndLine)
	require.Equal(t, n.Span.StartByte, decoded.Span.StartByte)
	require.Equal(t, n.Content, decoded.Content)
	require.Equal(t, n.Metadata, decoded.Metadata)
	require.Equal(t, n.Embedding, decoded.Embedding)
	require.Equal(t, *n.Complexity, *decoded.Complexity)
}

func TestEncodeDecodeNode_CompressesLargeContent(t *testing.T) {
	nt := entity.NodeFunction
	n := entity.NewNode("proj", "Big", &nt, nil, entity.Location{FilePath: "pkg/big.go", Line: 1, Column: 1})
	n.WithContent(strings.Repeat("x", compressionThreshold*4))

	encoded := EncodeNode(n)
	decoded, err := DecodeNode(encoded)
	require.NoError(t, err)
	require.Equal(t, n.Content, decoded.Content)
}

func TestEncodeDecodeNode_NoOptionalFields(t *testing.T) {
	n := entity.NewNode("proj", "Bare", nil, nil, entity.Location{FilePath: "pkg/bare.go", Line: 1, Column: 1})

	decoded, err := DecodeNode(EncodeNode(n))
	require.NoError(t, err)
	require.Nil(t, decoded.NodeType)
	require.Nil(t, decoded.Language)
	require.Nil(t, decoded.Span)
	require.Nil(t, decoded.Embedding)
	require.Nil(t, decoded.Complexity)
}

func TestEncodeDecodeEdge_RoundTrip_Resolved(t *testing.T) {
	from := entity.DeriveNodeID("proj", "a.go", "A", entity.NodeFunction, 1)
	to := entity.DeriveNodeID("proj", "b.go", "B", entity.NodeFunction, 2)
	e := entity.NewEdge(from, entity.NodeTarget(to), entity.EdgeCalls)
	e.Seq = 7
	e.Span = &entity.Span{StartByte: 1, EndByte: 2}

	decoded, err := DecodeEdge(EncodeEdge(&e))
	require.NoError(t, err)
	require.Equal(t, e.From, decoded.From)
	require.True(t, decoded.To.Resolved())
	require.Equal(t, to, *decoded.To.ResolvedID)
	require.Equal(t, e.EdgeType, decoded.EdgeType)
	require.Equal(t, e.Seq, decoded.Seq)
}

func TestEncodeDecodeEdge_RoundTrip_Unresolved(t *testing.T) {
	from := entity.DeriveNodeID("proj", "a.go", "A", entity.NodeFunction, 1)
	e := entity.NewEdge(from, entity.SymbolTarget("some.module.Func"), entity.EdgeUses)

	decoded, err := DecodeEdge(EncodeEdge(&e))
	require.NoError(t, err)
	require.False(t, decoded.To.Resolved())
	require.Equal(t, "some.module.Func", decoded.To.Symbol)
}

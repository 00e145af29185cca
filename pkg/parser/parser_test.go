// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/entity"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLanguageForPath(t *testing.T) {
	lang, err := LanguageForPath("foo/bar.go")
	require.NoError(t, err)
	require.Equal(t, entity.LanguageGo, lang)

	_, err = LanguageForPath("foo/bar.unknownext")
	require.Error(t, err)
}

func TestPool_ParseFile_Go(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import "fmt"

func Add(a, b int) int {
	return helper(a, b)
}

func helper(a, b int) int {
	fmt.Println(a, b)
	return a + b
}

type Point struct {
	X, Y int
}
`
	path := writeTempFile(t, dir, "sample.go", src)

	pool, err := NewPool("proj")
	require.NoError(t, err)

	res, err := pool.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, res)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "Add")
	require.Contains(t, names, "helper")
	require.Contains(t, names, "Point")

	var sawCallsEdge bool
	for _, e := range res.Edges {
		if e.EdgeType == entity.EdgeCalls && e.To.Resolved() {
			sawCallsEdge = true
		}
	}
	require.True(t, sawCallsEdge, "expected Add -> helper to resolve within the same file")
}

func TestPool_ParseFile_Python(t *testing.T) {
	dir := t.TempDir()
	src := `import os


class Greeter:
    def greet(self, name):
        return helper(name)


def helper(name):
    return "hi " + name
`
	path := writeTempFile(t, dir, "sample.py", src)

	pool, err := NewPool("proj")
	require.NoError(t, err)

	res, err := pool.ParseFile(context.Background(), path)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "Greeter")
	require.Contains(t, names, "greet")
	require.Contains(t, names, "helper")
}

func TestPool_ParseFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "notes.txt", "hello")

	pool, err := NewPool("proj")
	require.NoError(t, err)

	_, err = pool.ParseFile(context.Background(), path)
	require.Error(t, err)
}

func TestPool_ParseFiles_CollectsPerFileResults(t *testing.T) {
	dir := t.TempDir()
	good := writeTempFile(t, dir, "good.go", "package good\nfunc Foo() {}\n")
	bad := writeTempFile(t, dir, "bad.unknownext", "???")

	pool, err := NewPool("proj")
	require.NoError(t, err)

	results, err := pool.ParseFiles(context.Background(), []string{good, bad})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPath := make(map[string]FileResult, len(results))
	for _, r := range results {
		byPath[r.Path] = r
	}
	require.NoError(t, byPath[good].Err)
	require.Error(t, byPath[bad].Err)
}

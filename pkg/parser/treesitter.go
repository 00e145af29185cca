// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// defaultMaxContentBytes bounds how much source text a node's Content
// carries; entities larger than this are truncated, guarding against
// pathological single-entity sizes.
const defaultMaxContentBytes = 8192

// treeSitterParser is the one generic CodeParser implementation every
// language in languages.go shares, configured by a langSpec.
type treeSitterParser struct {
	spec langSpec
}

func newTreeSitterParser(spec langSpec) (CodeParser, error) {
	if spec.Grammar == nil {
		return nil, fmt.Errorf("parser: no grammar registered for %s", spec.Language)
	}
	return &treeSitterParser{spec: spec}, nil
}

func (p *treeSitterParser) Language() entity.Language { return p.spec.Language }

func (p *treeSitterParser) ParseFile(ctx context.Context, projectID, path string, content []byte) (*ExtractionResult, error) {
	sp := sitter.NewParser()
	sp.SetLanguage(p.spec.Grammar)

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, cgerrors.ParseUnrecoverable(path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ExtractionResult{}
	if root == nil {
		return result, nil
	}

	w := &walker{
		spec:      p.spec,
		content:   content,
		path:      path,
		projectID: projectID,
		nameToID:  make(map[string]entity.ID),
		result:    result,
	}

	lang := p.spec.Language
	moduleType := entity.NodeModule
	module := entity.NewNode(projectID, filepath.Base(path), &moduleType, &lang,
		entity.Location{FilePath: path, Line: 1, Column: 1})
	w.module = module
	result.Nodes = append(result.Nodes, module)

	if root.HasError() {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: syntax errors present, partial extraction", path))
	}

	w.collectDeclarations(root)
	w.collectCalls(root)

	return result, nil
}

// walker carries the per-file state the recursive tree-sitter visit needs.
type walker struct {
	spec      langSpec
	content   []byte
	path      string
	projectID string
	module    *entity.Node
	nameToID  map[string]entity.ID
	result    *ExtractionResult
}

// collectDeclarations walks the tree once, emitting a Node (and a Contains
// edge from the file's module node) for every function-like, type-like, and
// import-like declaration the langSpec names.
func (w *walker) collectDeclarations(n *sitter.Node) {
	if n == nil {
		return
	}
	t := n.Type()
	switch {
	case contains(w.spec.Functions, t):
		w.emitFunction(n)
	case contains(w.spec.Types, t):
		w.emitType(n)
	case contains(w.spec.Imports, t):
		w.emitImport(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		w.collectDeclarations(n.Child(i))
	}
}

// collectCalls walks the tree a second time (after every declaration has an
// id, so same-file calls can resolve immediately) emitting Calls edges from
// the nearest enclosing function node.
func (w *walker) collectCalls(n *sitter.Node) {
	w.walkCalls(n, entity.ID{})
}

func (w *walker) walkCalls(n *sitter.Node, enclosing entity.ID) {
	if n == nil {
		return
	}
	current := enclosing
	if contains(w.spec.Functions, n.Type()) {
		if id, ok := w.nameToID[w.entityKey(n)]; ok {
			current = id
		}
	}
	if contains(w.spec.Calls, n.Type()) && current != (entity.ID{}) {
		if callee := extractCallee(n, w.content); callee != "" {
			to := entity.SymbolTarget(callee)
			if calleeID, ok := w.nameToID[callee]; ok {
				to = entity.NodeTarget(calleeID)
			}
			edge := entity.NewEdge(current, to, entity.EdgeCalls)
			w.result.Edges = append(w.result.Edges, &edge)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		w.walkCalls(n.Child(i), current)
	}
}

// entityKey returns the map key collectCalls uses to recognize "we are
// inside the function declared at node n" — the same name extraction
// emitFunction used to populate nameToID.
func (w *walker) entityKey(n *sitter.Node) string {
	return extractName(n, w.content, w.spec.NameField)
}

func (w *walker) emitFunction(n *sitter.Node) {
	name := extractName(n, w.content, w.spec.NameField)
	if name == "" {
		name = fmt.Sprintf("anonymous@%d", n.StartPoint().Row+1)
	}
	node := w.newNode(n, name, entity.NodeFunction)
	node = node.WithComplexity(branchComplexity(n))
	w.result.Nodes = append(w.result.Nodes, node)
	w.nameToID[name] = node.ID

	edge := entity.NewEdge(w.module.ID, entity.NodeTarget(node.ID), entity.EdgeContains)
	w.result.Edges = append(w.result.Edges, &edge)
}

// branchComplexity approximates cyclomatic complexity as 1 plus the count
// of branching constructs in n's subtree, computed from real branch counts
// rather than a stub value. Node types are counted by exact match against
// a fixed list of branching node-type names shared by the grammars in
// languages.go.
func branchComplexity(n *sitter.Node) float32 {
	var count int
	var walk func(*sitter.Node)
	walk = func(cur *sitter.Node) {
		if cur == nil {
			return
		}
		t := cur.Type()
		for _, kw := range []string{"if_statement", "if_expression", "for_statement", "for_expression",
			"while_statement", "while_expression", "case", "catch_clause", "except_clause",
			"conditional_expression", "switch_statement", "guard_statement"} {
			if t == kw {
				count++
				break
			}
		}
		for i := 0; i < int(cur.ChildCount()); i++ {
			walk(cur.Child(i))
		}
	}
	walk(n)
	return float32(1 + count)
}

func (w *walker) emitType(n *sitter.Node) {
	name := extractName(n, w.content, w.spec.NameField)
	if name == "" {
		return
	}
	node := w.newNode(n, name, typeNodeKind(n.Type()))
	w.result.Nodes = append(w.result.Nodes, node)
	w.nameToID[name] = node.ID

	edge := entity.NewEdge(w.module.ID, entity.NodeTarget(node.ID), entity.EdgeContains)
	w.result.Edges = append(w.result.Edges, &edge)
}

func (w *walker) emitImport(n *sitter.Node) {
	raw := strings.TrimSpace(contentOf(n, w.content))
	if raw == "" {
		return
	}
	name := raw
	if len(name) > 120 {
		name = name[:120]
	}
	node := w.newNode(n, name, entity.NodeImport)
	w.result.Nodes = append(w.result.Nodes, node)

	edge := entity.NewEdge(w.module.ID, entity.NodeTarget(node.ID), entity.EdgeContains)
	w.result.Edges = append(w.result.Edges, &edge)

	importEdge := entity.NewEdge(w.module.ID, entity.SymbolTarget(name), entity.EdgeImports)
	w.result.Edges = append(w.result.Edges, &importEdge)
}

func (w *walker) newNode(n *sitter.Node, name string, nt entity.NodeType) *entity.Node {
	lang := w.spec.Language
	startLine := uint32(n.StartPoint().Row) + 1
	startCol := uint32(n.StartPoint().Column) + 1
	endLine := uint32(n.EndPoint().Row) + 1
	endCol := uint32(n.EndPoint().Column) + 1

	loc := entity.Location{
		FilePath: w.path, Line: startLine, Column: startCol,
		EndLine: &endLine, EndColumn: &endCol,
	}
	node := entity.NewNode(w.projectID, name, &nt, &lang, loc)
	node.Span = &entity.Span{StartByte: n.StartByte(), EndByte: n.EndByte()}
	return node.WithContent(truncateContent(contentOf(n, w.content)))
}

func truncateContent(s string) string {
	if len(s) <= defaultMaxContentBytes {
		return s
	}
	return s[:defaultMaxContentBytes]
}

func contentOf(n *sitter.Node, content []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// typeNodeKind maps a grammar's raw declaration node type to the closed
// entity.NodeType vocabulary, by substring since every grammar in
// languages.go names these consistently (struct_item, struct_specifier,
// struct_declaration all contain "struct", etc.).
func typeNodeKind(raw string) entity.NodeType {
	switch {
	case strings.Contains(raw, "interface") || strings.Contains(raw, "protocol"):
		return entity.NodeInterface
	case strings.Contains(raw, "struct") || strings.Contains(raw, "union"):
		return entity.NodeStruct
	case strings.Contains(raw, "enum"):
		return entity.NodeEnum
	case strings.Contains(raw, "trait"):
		return entity.NodeTrait
	case strings.Contains(raw, "mod") || raw == "module":
		return entity.NodeModule
	default:
		return entity.NodeClass
	}
}

// extractName resolves an entity's identifier: nameField's child if the
// grammar tags one, otherwise the first identifier-like named child, for
// grammars that don't expose a "name" field. Names are interned: the same
// identifier re-extracted on every re-parse shares one allocation.
func extractName(n *sitter.Node, content []byte, nameField string) string {
	if nameField != "" {
		if nm := n.ChildByFieldName(nameField); nm != nil {
			return symbols.Intern(contentOf(nm, content))
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if strings.Contains(c.Type(), "identifier") {
			return symbols.Intern(contentOf(c, content))
		}
	}
	return ""
}

// extractCallee resolves a call-like node's target name, descending into
// member/selector expressions (a.b.c()) to the final identifier.
func extractCallee(n *sitter.Node, content []byte) string {
	target := n.ChildByFieldName("function")
	if target == nil {
		target = n.ChildByFieldName("method")
	}
	if target == nil && n.NamedChildCount() > 0 {
		target = n.NamedChild(0)
	}
	if target == nil {
		return ""
	}
	for {
		if strings.Contains(target.Type(), "identifier") {
			return symbols.Intern(contentOf(target, content))
		}
		found := false
		for i := int(target.NamedChildCount()) - 1; i >= 0; i-- {
			c := target.NamedChild(i)
			if strings.Contains(c.Type(), "identifier") {
				target = c
				found = true
				break
			}
		}
		if !found {
			return contentOf(target, content)
		}
	}
}

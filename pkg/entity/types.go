// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package entity defines the CodeGraph data model: nodes, edges,
// locations, and the closed vocabularies that tag them.
package entity

import "fmt"

// Language is a closed tag for the source language a node was extracted
// from, with an escape hatch for languages the parser pool recognizes by
// extension but has no dedicated grammar for.
type Language string

const (
	LanguageRust       Language = "rust"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageSwift      Language = "swift"
)

// OtherLanguage builds a Language tag for a recognized-but-uncataloged
// language.
func OtherLanguage(tag string) Language { return Language("other:" + tag) }

// NodeType is a closed tag for the kind of code entity a Node represents.
type NodeType string

const (
	NodeFunction  NodeType = "function"
	NodeStruct    NodeType = "struct"
	NodeEnum      NodeType = "enum"
	NodeTrait     NodeType = "trait"
	NodeModule    NodeType = "module"
	NodeVariable  NodeType = "variable"
	NodeImport    NodeType = "import"
	NodeClass     NodeType = "class"
	NodeInterface NodeType = "interface"
	NodeTypeAlias NodeType = "type"
	NodePackage   NodeType = "package"
)

// OtherNodeType builds a NodeType tag for an entity kind not in the closed
// set above.
func OtherNodeType(tag string) NodeType { return NodeType("other:" + tag) }

// EdgeType is a closed tag for the kind of relationship an Edge encodes.
type EdgeType string

const (
	EdgeCalls      EdgeType = "calls"
	EdgeDefines    EdgeType = "defines"
	EdgeUses       EdgeType = "uses"
	EdgeImports    EdgeType = "imports"
	EdgeExtends    EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeContains   EdgeType = "contains"
	EdgeReferences EdgeType = "references"
	EdgeDependsOn  EdgeType = "depends_on"
)

// OtherEdgeType builds an EdgeType tag outside the closed set.
func OtherEdgeType(tag string) EdgeType { return EdgeType("other:" + tag) }

// Location pinpoints a Node within a source file. Line/column are 1-based.
type Location struct {
	FilePath  string  `json:"file_path"`
	Line      uint32  `json:"line"`
	Column    uint32  `json:"column"`
	EndLine   *uint32 `json:"end_line,omitempty"`
	EndColumn *uint32 `json:"end_column,omitempty"`
}

// Validate enforces the Location invariants: line >= 1, and
// end_line >= line when present.
func (l Location) Validate() error {
	if l.Line < 1 {
		return fmt.Errorf("location: line must be >= 1, got %d", l.Line)
	}
	if l.EndLine != nil && *l.EndLine < l.Line {
		return fmt.Errorf("location: end_line (%d) must be >= line (%d)", *l.EndLine, l.Line)
	}
	return nil
}

// Span is a byte-offset range into the source file's raw bytes, used by
// the parser to slice Content without re-decoding line/column positions.
type Span struct {
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

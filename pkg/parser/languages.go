// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/codegraph/pkg/entity"
)

// langSpec is the per-language declaration table that drives the generic
// tree-sitter walker in treesitter.go: instead of one hand-written walker
// per language, this configures a single engine per language by its
// grammar's node-type vocabulary, which is the stable public surface of
// each tree-sitter grammar.
type langSpec struct {
	Language  entity.Language
	Grammar   *sitter.Language
	Functions []string
	Types     []string
	Imports   []string
	Calls     []string
	// NameField is the field holding an entity's identifier; empty means
	// fall back to the first identifier-like named child.
	NameField string
}

func allLanguageSpecs() []langSpec {
	return []langSpec{
		{
			Language:  entity.LanguageGo,
			Grammar:   golang.GetLanguage(),
			Functions: []string{"function_declaration", "method_declaration", "func_literal"},
			Types:     []string{"type_spec"},
			Imports:   []string{"import_declaration", "import_spec"},
			Calls:     []string{"call_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageRust,
			Grammar:   rust.GetLanguage(),
			Functions: []string{"function_item", "closure_expression"},
			Types:     []string{"struct_item", "enum_item", "trait_item", "impl_item", "mod_item"},
			Imports:   []string{"use_declaration"},
			Calls:     []string{"call_expression", "macro_invocation"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageTypeScript,
			Grammar:   typescript.GetLanguage(),
			Functions: []string{"function_declaration", "method_definition", "arrow_function", "function_expression"},
			Types:     []string{"class_declaration", "interface_declaration", "type_alias_declaration", "enum_declaration"},
			Imports:   []string{"import_statement"},
			Calls:     []string{"call_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageJavaScript,
			Grammar:   javascript.GetLanguage(),
			Functions: []string{"function_declaration", "method_definition", "arrow_function", "function_expression"},
			Types:     []string{"class_declaration"},
			Imports:   []string{"import_statement"},
			Calls:     []string{"call_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguagePython,
			Grammar:   python.GetLanguage(),
			Functions: []string{"function_definition"},
			Types:     []string{"class_definition"},
			Imports:   []string{"import_statement", "import_from_statement"},
			Calls:     []string{"call"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageJava,
			Grammar:   java.GetLanguage(),
			Functions: []string{"method_declaration", "constructor_declaration"},
			Types:     []string{"class_declaration", "interface_declaration", "enum_declaration"},
			Imports:   []string{"import_declaration"},
			Calls:     []string{"method_invocation", "object_creation_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageC,
			Grammar:   c.GetLanguage(),
			Functions: []string{"function_definition"},
			Types:     []string{"struct_specifier", "enum_specifier", "union_specifier"},
			Imports:   []string{"preproc_include"},
			Calls:     []string{"call_expression"},
		},
		{
			Language:  entity.LanguageCPP,
			Grammar:   cpp.GetLanguage(),
			Functions: []string{"function_definition"},
			Types:     []string{"struct_specifier", "class_specifier", "enum_specifier", "union_specifier"},
			Imports:   []string{"preproc_include"},
			Calls:     []string{"call_expression"},
		},
		{
			Language:  entity.LanguageCSharp,
			Grammar:   csharp.GetLanguage(),
			Functions: []string{"method_declaration", "constructor_declaration", "local_function_statement"},
			Types:     []string{"class_declaration", "interface_declaration", "struct_declaration", "enum_declaration"},
			Imports:   []string{"using_directive"},
			Calls:     []string{"invocation_expression", "object_creation_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageRuby,
			Grammar:   ruby.GetLanguage(),
			Functions: []string{"method", "singleton_method"},
			Types:     []string{"class", "module"},
			Imports:   []string{}, // require/require_relative are plain calls, not a dedicated grammar node
			Calls:     []string{"call", "method_call"},
			NameField: "name",
		},
		{
			Language:  entity.LanguagePHP,
			Grammar:   php.GetLanguage(),
			Functions: []string{"function_definition", "method_declaration"},
			Types:     []string{"class_declaration", "interface_declaration", "trait_declaration", "enum_declaration"},
			Imports:   []string{"namespace_use_declaration"},
			Calls:     []string{"function_call_expression", "member_call_expression", "scoped_call_expression"},
			NameField: "name",
		},
		{
			Language:  entity.LanguageSwift,
			Grammar:   swift.GetLanguage(),
			Functions: []string{"function_declaration"},
			Types:     []string{"class_declaration", "protocol_declaration"},
			Imports:   []string{"import_declaration"},
			Calls:     []string{"call_expression"},
			NameField: "name",
		},
	}
}

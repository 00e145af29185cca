// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package parser implements the parser pool: per-language extractors that
// turn one file's source text into (nodes, edges), dispatched by file
// extension and run on a bounded worker pool. Rather than one hand-written
// walker per language, it generalizes into a single grammar-table-driven
// engine (treesitter.go, languages.go) covering every supported language
// through the same CodeParser-shaped contract.
package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/concurrent"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// symbols deduplicates the strings extraction repeats endlessly across
// files and re-parses (file paths, entity and callee names). Process-wide:
// initialized at load, never cleared.
var symbols = concurrent.NewInterner()

// MmapThreshold is the file-size cutoff at and above which ParseFile
// reads via memory mapping rather than a regular read.
const MmapThreshold = 4 * 1024 * 1024

// ExtractionResult is one file's parse output: the nodes and edges a
// CodeParser extracted from it, plus any recoverable diagnostics.
type ExtractionResult struct {
	Nodes       []*entity.Node
	Edges       []*entity.Edge
	Diagnostics []string
}

// CodeParser extracts nodes and edges from one file's source text. One
// implementation exists per supported language; Pool dispatches to the
// right one by file extension.
type CodeParser interface {
	// ParseFile parses content (already read from path) and returns the
	// entities it found. A syntax error does not by itself return an
	// error: the parser extracts what it can and reports a diagnostic, so
	// one broken file never aborts a batch. Only an unrecoverable
	// tree-sitter failure returns a non-nil error.
	ParseFile(ctx context.Context, projectID, path string, content []byte) (*ExtractionResult, error)
	// Language identifies the language this parser extracts.
	Language() entity.Language
}

// extensionLanguage maps a lower-cased file extension (including the dot)
// to the language it belongs to.
var extensionLanguage = map[string]entity.Language{
	".rs":    entity.LanguageRust,
	".ts":    entity.LanguageTypeScript,
	".tsx":   entity.LanguageTypeScript,
	".js":    entity.LanguageJavaScript,
	".jsx":   entity.LanguageJavaScript,
	".mjs":   entity.LanguageJavaScript,
	".py":    entity.LanguagePython,
	".go":    entity.LanguageGo,
	".java":  entity.LanguageJava,
	".c":     entity.LanguageC,
	".h":     entity.LanguageC,
	".cc":    entity.LanguageCPP,
	".cpp":   entity.LanguageCPP,
	".cxx":   entity.LanguageCPP,
	".hpp":   entity.LanguageCPP,
	".cs":    entity.LanguageCSharp,
	".rb":    entity.LanguageRuby,
	".php":   entity.LanguagePHP,
	".swift": entity.LanguageSwift,
}

// LanguageForPath detects a language from path's extension, returning
// cgerrors.UnsupportedLanguage when the extension is unrecognized.
func LanguageForPath(path string) (entity.Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extensionLanguage[ext]
	if !ok {
		return "", cgerrors.UnsupportedLanguage(ext)
	}
	return lang, nil
}

// Pool owns one CodeParser per language and dispatches ParseFile calls to
// the right one by extension.
type Pool struct {
	projectID string
	parsers   map[entity.Language]CodeParser
}

// NewPool builds a Pool with a tree-sitter-backed CodeParser registered
// for every supported language.
func NewPool(projectID string) (*Pool, error) {
	p := &Pool{projectID: projectID, parsers: make(map[entity.Language]CodeParser)}
	for _, spec := range allLanguageSpecs() {
		parser, err := newTreeSitterParser(spec)
		if err != nil {
			return nil, err
		}
		p.parsers[spec.Language] = parser
	}
	return p, nil
}

// ParseFile detects path's language, reads its content (mmap'd above
// MmapThreshold), and dispatches to the matching CodeParser.
func (p *Pool) ParseFile(ctx context.Context, path string) (*ExtractionResult, error) {
	path = symbols.Intern(path)
	lang, err := LanguageForPath(path)
	if err != nil {
		return nil, err
	}
	parser, ok := p.parsers[lang]
	if !ok {
		return nil, cgerrors.UnsupportedLanguage(string(lang))
	}

	content, closer, err := readFileContent(path)
	if err != nil {
		return nil, cgerrors.IOError(err)
	}
	defer closer()

	return parser.ParseFile(ctx, p.projectID, path, content)
}

// readFileContent reads path's bytes, memory-mapping files at or above
// MmapThreshold (mmap_unix.go / mmap_other.go) and using a plain read
// otherwise. The returned closer must be called once content is no longer
// needed.
func readFileContent(path string) ([]byte, func() error, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.Size() >= MmapThreshold {
		return mmapFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}

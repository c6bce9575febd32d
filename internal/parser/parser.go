// Package parser hosts the per-language modules that turn file content into
// a slice-line list followed by code entities, relationships, and call-site
// references, all keyed by deterministic temporary identifiers.
package parser

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Result is the gathered output of parsing one file. SliceLines is emitted
// exactly once and always first; Items preserve discovery order.
type Result struct {
	SliceLines model.SliceLines
	Items      []model.ParserItem
}

func (r *Result) emit(item model.ParserItem) {
	r.Items = append(r.Items, item)
}

// Parser is implemented by each language module. Parse must tolerate
// malformed input: it logs and continues, and never returns an error for
// bad content. A file whose AST cannot be built still yields slice line 0.
type Parser interface {
	// Language returns the language key this parser instance handles.
	Language() string
	// Parse parses content for the file identified by fileSlug.
	Parse(ctx context.Context, fileSlug, content string) *Result
}

// constructors maps language keys to parser factories. Keys absent here
// route to the generic parser.
var constructors = map[string]func() (Parser, error){
	"cpp":        func() (Parser, error) { return newCppParser() },
	"c":          func() (Parser, error) { return newCParser() },
	"python":     func() (Parser, error) { return newPythonParser() },
	"javascript": func() (Parser, error) { return newJavascriptParser() },
	"typescript": func() (Parser, error) { return newTypescriptParser() },
	"rust":       func() (Parser, error) { return newRustParser() },
	"markdown":   func() (Parser, error) { return newMarkdownParser() },
	"css":        func() (Parser, error) { return newCssParser() },
	"dockerfile": func() (Parser, error) { return newDockerfileParser() },
}

// New instantiates the parser for a language key. Unknown keys get the
// generic fallback parser. Instantiation can fail when a tree-sitter
// grammar cannot be loaded; callers cache the failure and skip the
// language thereafter.
func New(language string) (Parser, error) {
	if ctor, ok := constructors[language]; ok {
		p, err := ctor()
		if err != nil {
			return nil, fmt.Errorf("parser for %s: %w", language, err)
		}
		return p, nil
	}
	return newGenericParser(language), nil
}

// HasDedicatedParser reports whether a language key has an AST-based parser
// (as opposed to the generic fallback).
func HasDedicatedParser(language string) bool {
	_, ok := constructors[language]
	return ok
}

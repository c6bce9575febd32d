package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammarFor returns the tree-sitter grammar for a language key, or nil for
// keys without a grammar.
func grammarFor(language string) *sitter.Language {
	switch language {
	case "cpp":
		return sitter.NewLanguage(tree_sitter_cpp.Language())
	case "c":
		return sitter.NewLanguage(tree_sitter_c.Language())
	case "python":
		return sitter.NewLanguage(tree_sitter_python.Language())
	case "javascript":
		return sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "rust":
		return sitter.NewLanguage(tree_sitter_rust.Language())
	}
	return nil
}

// parseTree builds an AST for content. Each call uses a fresh sitter.Parser
// because parser instances are not safe for concurrent use across files.
// Caller must Close() the returned tree.
func parseTree(language *sitter.Language, content []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	if p == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}
	defer p.Close()
	if err := p.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	tree := p.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	return tree, nil
}

// nodeText extracts the source text covered by a node, clamped to the
// content bounds.
func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(src) {
		end = uint(len(src))
	}
	if start >= end {
		return ""
	}
	return string(src[start:end])
}

// startRow returns a node's 0-indexed start line.
func startRow(node *sitter.Node) int {
	return int(node.StartPosition().Row)
}

// endRow returns a node's 0-indexed end line.
func endRow(node *sitter.Node) int {
	return int(node.EndPosition().Row)
}

// eachChild invokes fn for every direct child of node.
func eachChild(node *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			fn(child)
		}
	}
}

// eachNamedChild invokes fn for every named direct child of node.
func eachNamedChild(node *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil {
			fn(child)
		}
	}
}

// firstChildOfKind returns the first direct child with the given kind.
func firstChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	var found *sitter.Node
	eachChild(node, func(c *sitter.Node) {
		if found == nil && c.Kind() == kind {
			found = c
		}
	})
	return found
}

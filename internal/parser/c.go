package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// cParser extracts functions, structs, unions, enums, typedefs, and
// includes from C sources.
type cParser struct {
	language *sitter.Language
}

func newCParser() (*cParser, error) {
	g := grammarFor("c")
	if g == nil {
		return nil, fmt.Errorf("c grammar not available")
	}
	return &cParser{language: g}, nil
}

func (p *cParser) Language() string { return "c" }

func (p *cParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.c").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		return &Result{SliceLines: model.SliceLines{}}
	}

	src := []byte(content)
	tree, err := parseTree(p.language, src)
	if err != nil {
		log.Error("failed to build AST", "error", err)
		return &Result{SliceLines: model.SliceLines{0}}
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &Result{}
	sliceSet := map[int]bool{0: true}
	processed := map[uint]bool{}
	seenExternals := map[string]bool{}
	var bodies []scanTarget

	emit := func(defNode, nameNode *sitter.Node, entityType string) string {
		if nameNode == nil || processed[defNode.StartByte()] {
			return ""
		}
		fqn := fqnFor(nameNode, defNode, root, src)
		if fqn == "" {
			return ""
		}
		line0 := startRow(defNode)
		tempID := model.TempEntitySlug(fqn, line0)
		processed[defNode.StartByte()] = true
		sliceSet[line0] = true
		result.emit(model.CodeEntity{
			SlugID:   tempID,
			Type:     entityType,
			FileSlug: fileSlug,
			Snippet:  nodeText(defNode, src),
		})
		return tempID
	}

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "preproc_include":
			target := node.ChildByFieldName("path")
			if target != nil {
				raw := nodeText(target, src)
				canonical := strings.Trim(raw, `<>"`)
				if canonical != "" {
					line0 := startRow(node)
					sliceSet[line0] = true
					if !seenExternals[canonical] {
						seenExternals[canonical] = true
						tempRefID := model.TempEntitySlug(canonical, line0)
						result.emit(model.CodeEntity{
							SlugID:   tempRefID,
							Type:     "ExternalReference",
							FileSlug: fileSlug,
							Snippet:  canonical,
						})
						result.emit(model.Relationship{
							SourceID: fileSlug,
							TargetID: tempRefID,
							Type:     model.RelImports,
						})
					}
				}
			}
		case "function_definition":
			if fd := findFunctionDeclarator(node); fd != nil {
				tempID := emit(node, declaratorNameNode(fd), "FunctionDefinition")
				if tempID != "" {
					if body := node.ChildByFieldName("body"); body != nil {
						bodies = append(bodies, scanTarget{body: body, tempID: tempID})
					}
				}
			}
		case "struct_specifier":
			if name := node.ChildByFieldName("name"); name != nil && node.ChildByFieldName("body") != nil {
				emit(node, name, "StructDefinition")
			}
		case "union_specifier":
			if name := node.ChildByFieldName("name"); name != nil && node.ChildByFieldName("body") != nil {
				emit(node, name, "UnionDefinition")
			}
		case "enum_specifier":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, name, "EnumDefinition")
			}
		case "type_definition":
			d := node.ChildByFieldName("declarator")
			for depth := 0; d != nil && depth < 4; depth++ {
				if d.Kind() == "type_identifier" || d.Kind() == "identifier" {
					emit(node, d, "TypeDefinition")
					break
				}
				next := d.ChildByFieldName("declarator")
				if next == nil {
					next = firstChildOfKind(d, "type_identifier")
				}
				d = next
			}
		case "declaration":
			if fd := findFunctionDeclarator(node); fd != nil {
				if d := node.ChildByFieldName("declarator"); d == nil || d.Kind() != "init_declarator" {
					emit(node, declaratorNameNode(fd), "FunctionDeclaration")
				}
			}
		}
		eachChild(node, walk)
	}
	walk(root)

	for _, target := range bodies {
		scanCallSites(target.body, target.tempID, fileSlug, src, result, log)
	}

	result.SliceLines = sortedSlices(sliceSet)
	return result
}

package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// javascriptParser extracts functions, classes, methods, and imports from
// JavaScript and TypeScript sources; the two grammars share the node
// kinds this walker touches.
type javascriptParser struct {
	languageKey string
	language    *sitter.Language
}

func newJavascriptParser() (*javascriptParser, error) {
	g := grammarFor("javascript")
	if g == nil {
		return nil, fmt.Errorf("javascript grammar not available")
	}
	return &javascriptParser{languageKey: "javascript", language: g}, nil
}

func newTypescriptParser() (*javascriptParser, error) {
	g := grammarFor("typescript")
	if g == nil {
		return nil, fmt.Errorf("typescript grammar not available")
	}
	return &javascriptParser{languageKey: "typescript", language: g}, nil
}

func (p *javascriptParser) Language() string { return p.languageKey }

// jsScopePath climbs enclosing class declarations, joining names with dots.
func jsScopePath(node *sitter.Node, src []byte) string {
	var parts []string
	for current := node.Parent(); current != nil; current = current.Parent() {
		if current.Kind() != "class_declaration" && current.Kind() != "class" {
			continue
		}
		if name := current.ChildByFieldName("name"); name != nil {
			parts = append(parts, nodeText(name, src))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

func jsParamString(params *sitter.Node, src []byte) string {
	if params == nil {
		return "()"
	}
	var names []string
	eachNamedChild(params, func(param *sitter.Node) {
		text := strings.Join(strings.Fields(nodeText(param, src)), " ")
		if eq := strings.Index(text, "="); eq >= 0 {
			text = strings.TrimSpace(text[:eq])
		}
		if text != "" {
			names = append(names, text)
		}
	})
	return "(" + strings.Join(names, ",") + ")"
}

func (p *javascriptParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.javascript").With("file", fileSlug)

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
	seenImports := map[string]bool{}
	var bodies []scanTarget

	emitFunction := func(node *sitter.Node, nameNode *sitter.Node, entityType string) {
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, src)
		if scope := jsScopePath(node, src); scope != "" {
			name = scope + "." + name
		}
		fqn := name + jsParamString(node.ChildByFieldName("parameters"), src)
		line0 := startRow(node)
		sliceSet[line0] = true
		tempID := model.TempEntitySlug(fqn, line0)
		result.emit(model.CodeEntity{
			SlugID:   tempID,
			Type:     entityType,
			FileSlug: fileSlug,
			Snippet:  nodeText(node, src),
		})
		if body := node.ChildByFieldName("body"); body != nil {
			bodies = append(bodies, scanTarget{body: body, tempID: tempID})
		}
	}

	emitImport := func(node *sitter.Node, target string) {
		target = strings.Trim(target, `'"`)
		if target == "" {
			return
		}
		line0 := startRow(node)
		sliceSet[line0] = true
		if seenImports[target] {
			return
		}
		seenImports[target] = true
		tempRefID := model.TempEntitySlug(target, line0)
		result.emit(model.CodeEntity{
			SlugID:   tempRefID,
			Type:     "ExternalReference",
			FileSlug: fileSlug,
			Snippet:  nodeText(node, src),
		})
		result.emit(model.Relationship{
			SourceID: fileSlug,
			TargetID: tempRefID,
			Type:     model.RelImports,
		})
	}

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "function_declaration", "generator_function_declaration":
			emitFunction(node, node.ChildByFieldName("name"), "FunctionDefinition")

		case "method_definition":
			emitFunction(node, node.ChildByFieldName("name"), "FunctionDefinition")

		case "class_declaration":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			line0 := startRow(node)
			sliceSet[line0] = true
			tempID := model.TempEntitySlug(nodeText(nameNode, src), line0)
			result.emit(model.CodeEntity{
				SlugID:   tempID,
				Type:     "ClassDefinition",
				FileSlug: fileSlug,
				Snippet:  nodeText(node, src),
			})
			if heritage := firstChildOfKind(node, "class_heritage"); heritage != nil {
				eachNamedChild(heritage, func(parent *sitter.Node) {
					// The TypeScript grammar wraps the parent in an
					// extends_clause; implements clauses yield no EXTENDS edge.
					switch parent.Kind() {
					case "extends_clause":
						if value := parent.ChildByFieldName("value"); value != nil {
							parent = value
						}
					case "implements_clause":
						return
					}
					name := nodeText(parent, src)
					if name != "" {
						result.emit(model.Relationship{SourceID: tempID, TargetID: name, Type: model.RelExtends})
					}
				})
			}

		case "import_statement":
			if source := node.ChildByFieldName("source"); source != nil {
				emitImport(node, nodeText(source, src))
			}

		case "call_expression":
			// require("module") anywhere in the file doubles as an import.
			fn := node.ChildByFieldName("function")
			if fn != nil && fn.Kind() == "identifier" && nodeText(fn, src) == "require" {
				if args := node.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() == 1 {
					emitImport(node, nodeText(args.NamedChild(0), src))
				}
			}
		}
		eachChild(node, walk)
	}
	walk(root)

	for _, target := range bodies {
		scanJavascriptCalls(target.body, target.tempID, fileSlug, src, result)
	}

	result.SliceLines = sortedSlices(sliceSet)
	return result
}

func scanJavascriptCalls(body *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "function_declaration", "method_definition", "class_declaration":
			return
		case "call_expression":
			fn := node.ChildByFieldName("function")
			if fn != nil {
				called := strings.TrimSpace(nodeText(fn, src))
				if fn.Kind() == "member_expression" {
					if prop := fn.ChildByFieldName("property"); prop != nil {
						called = nodeText(prop, src)
					}
				}
				if called != "" && called != "require" {
					rawArgs, argCount := argumentInfo(node.ChildByFieldName("arguments"), src)
					result.emit(model.CallSiteReference{
						CallerTempID:  callerTempID,
						CalledExpr:    called,
						Line0:         startRow(node),
						FileSlug:      fileSlug,
						RawArgs:       rawArgs,
						ArgumentCount: argCount,
					})
				}
			}
		case "new_expression":
			if ctor := node.ChildByFieldName("constructor"); ctor != nil {
				called := strings.TrimSpace(nodeText(ctor, src))
				if called != "" {
					rawArgs, argCount := argumentInfo(node.ChildByFieldName("arguments"), src)
					result.emit(model.CallSiteReference{
						CallerTempID:  callerTempID,
						CalledExpr:    called,
						Line0:         startRow(node),
						FileSlug:      fileSlug,
						RawArgs:       rawArgs,
						ArgumentCount: argCount,
					})
				}
			}
		}
		eachChild(node, walk)
	}
	eachChild(body, walk)
}

package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// pythonParser extracts functions, classes, and imports from Python
// sources. Scope paths use the dotted form (Class.method).
type pythonParser struct {
	language *sitter.Language
}

func newPythonParser() (*pythonParser, error) {
	g := grammarFor("python")
	if g == nil {
		return nil, fmt.Errorf("python grammar not available")
	}
	return &pythonParser{language: g}, nil
}

func (p *pythonParser) Language() string { return "python" }

// pythonScopePath climbs enclosing class and function definitions, joining
// their names with dots.
func pythonScopePath(node *sitter.Node, src []byte) string {
	var parts []string
	for current := node.Parent(); current != nil; current = current.Parent() {
		kind := current.Kind()
		if kind != "class_definition" && kind != "function_definition" {
			continue
		}
		if name := current.ChildByFieldName("name"); name != nil {
			parts = append(parts, nodeText(name, src))
		}
	}
	// Reverse to outermost-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// pythonParamString renders a normalized parameter list: annotations when
// present, bare names otherwise, defaults stripped, self/cls dropped.
func pythonParamString(params *sitter.Node, src []byte) string {
	if params == nil {
		return "()"
	}
	var rendered []string
	eachNamedChild(params, func(param *sitter.Node) {
		var text string
		switch param.Kind() {
		case "identifier":
			text = nodeText(param, src)
		case "typed_parameter", "typed_default_parameter":
			if t := param.ChildByFieldName("type"); t != nil {
				text = nodeText(t, src)
			}
		case "default_parameter":
			if n := param.ChildByFieldName("name"); n != nil {
				text = nodeText(n, src)
			}
		case "list_splat_pattern":
			text = "*" + strings.TrimPrefix(strings.TrimSpace(nodeText(param, src)), "*")
		case "dictionary_splat_pattern":
			text = "**" + strings.TrimPrefix(strings.TrimSpace(nodeText(param, src)), "**")
		default:
			text = nodeText(param, src)
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" || text == "self" || text == "cls" {
			return
		}
		rendered = append(rendered, text)
	})
	return "(" + strings.Join(rendered, ",") + ")"
}

func (p *pythonParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.python").With("file", fileSlug)

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

	qualify := func(node *sitter.Node, name string) string {
		if scope := pythonScopePath(node, src); scope != "" {
			return scope + "." + name
		}
		return name
	}

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "function_definition":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			fqn := qualify(node, nodeText(nameNode, src)) + pythonParamString(node.ChildByFieldName("parameters"), src)
			line0 := startRow(node)
			sliceSet[line0] = true
			tempID := model.TempEntitySlug(fqn, line0)
			result.emit(model.CodeEntity{
				SlugID:   tempID,
				Type:     "FunctionDefinition",
				FileSlug: fileSlug,
				Snippet:  nodeText(node, src),
			})
			if body := node.ChildByFieldName("body"); body != nil {
				bodies = append(bodies, scanTarget{body: body, tempID: tempID})
			}

		case "class_definition":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			fqn := qualify(node, nodeText(nameNode, src))
			line0 := startRow(node)
			sliceSet[line0] = true
			tempID := model.TempEntitySlug(fqn, line0)
			result.emit(model.CodeEntity{
				SlugID:   tempID,
				Type:     "ClassDefinition",
				FileSlug: fileSlug,
				Snippet:  nodeText(node, src),
			})
			if supers := node.ChildByFieldName("superclasses"); supers != nil {
				eachNamedChild(supers, func(parent *sitter.Node) {
					switch parent.Kind() {
					case "identifier", "attribute":
						name := nodeText(parent, src)
						if name != "" {
							result.emit(model.Relationship{SourceID: tempID, TargetID: name, Type: model.RelExtends})
						}
					}
				})
			}

		case "import_statement", "import_from_statement":
			target := pythonImportTarget(node, src)
			if target != "" {
				line0 := startRow(node)
				sliceSet[line0] = true
				if !seenImports[target] {
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
			}
		}
		eachChild(node, walk)
	}
	walk(root)

	for _, target := range bodies {
		scanPythonCalls(target.body, target.tempID, fileSlug, src, result)
	}

	result.SliceLines = sortedSlices(sliceSet)
	return result
}

// pythonImportTarget resolves the module referenced by an import
// statement: "import a.b" -> "a.b", "from a import b" -> "a.b".
func pythonImportTarget(node *sitter.Node, src []byte) string {
	if node.Kind() == "import_statement" {
		if name := node.ChildByFieldName("name"); name != nil {
			switch name.Kind() {
			case "dotted_name", "identifier":
				return nodeText(name, src)
			case "aliased_import":
				if inner := name.ChildByFieldName("name"); inner != nil {
					return nodeText(inner, src)
				}
			}
		}
		return ""
	}

	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return ""
	}
	module := nodeText(moduleNode, src)
	var first string
	eachNamedChild(node, func(c *sitter.Node) {
		// Nodes are compared by byte range: each child lookup returns a
		// fresh *Node, so pointer equality never holds.
		if first != "" || (c.StartByte() == moduleNode.StartByte() && c.EndByte() == moduleNode.EndByte()) {
			return
		}
		if c.Kind() == "dotted_name" || c.Kind() == "identifier" {
			first = nodeText(c, src)
		}
	})
	if first != "" && module != "" {
		return module + "." + first
	}
	return module
}

// scanPythonCalls emits one CSR per call expression inside a function
// body. Nested function definitions are handled by their own entity.
func scanPythonCalls(body *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Kind() == "function_definition" || node.Kind() == "class_definition" {
			return
		}
		if node.Kind() == "call" {
			fn := node.ChildByFieldName("function")
			if fn != nil {
				called := strings.TrimSpace(nodeText(fn, src))
				if fn.Kind() == "attribute" {
					if attr := fn.ChildByFieldName("attribute"); attr != nil {
						called = nodeText(attr, src)
					}
				}
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

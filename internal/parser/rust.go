package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// rustParser extracts functions, structs, enums, traits, impl blocks,
// macros, modules, and use/extern-crate dependencies from Rust sources.
// Scope paths use the "::" form (module::Type::method).
type rustParser struct {
	language *sitter.Language
}

func newRustParser() (*rustParser, error) {
	g := grammarFor("rust")
	if g == nil {
		return nil, fmt.Errorf("rust grammar not available")
	}
	return &rustParser{language: g}, nil
}

func (p *rustParser) Language() string { return "rust" }

// rustScopePath climbs enclosing mod and impl blocks, joining names with "::".
func rustScopePath(node *sitter.Node, src []byte) string {
	var parts []string
	for current := node.Parent(); current != nil; current = current.Parent() {
		switch current.Kind() {
		case "mod_item":
			if name := current.ChildByFieldName("name"); name != nil {
				parts = append(parts, nodeText(name, src))
			}
		case "impl_item":
			if typeNode := current.ChildByFieldName("type"); typeNode != nil {
				parts = append(parts, stripTemplateArgs(strings.TrimSpace(nodeText(typeNode, src))))
			}
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

// rustParamString renders a normalized parameter-type list: declared types
// with names stripped, self receivers dropped.
func rustParamString(params *sitter.Node, src []byte) string {
	if params == nil {
		return "()"
	}
	var types []string
	eachNamedChild(params, func(param *sitter.Node) {
		switch param.Kind() {
		case "parameter":
			if t := param.ChildByFieldName("type"); t != nil {
				if text := normalizeTypeSpacing(nodeText(t, src)); text != "" {
					types = append(types, text)
				}
			}
		case "self_parameter":
			// receiver, not part of the signature suffix
		case "variadic_parameter":
			types = append(types, "...")
		default:
			if text := normalizeTypeSpacing(nodeText(param, src)); text != "" {
				types = append(types, text)
			}
		}
	})
	if len(types) == 0 {
		return "()"
	}
	return "(" + strings.Join(types, ",") + ")"
}

func (p *rustParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.rust").With("file", fileSlug)

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
		if scope := rustScopePath(node, src); scope != "" {
			return scope + "::" + name
		}
		return name
	}

	emit := func(node *sitter.Node, fqn, entityType string) string {
		line0 := startRow(node)
		sliceSet[line0] = true
		tempID := model.TempEntitySlug(fqn, line0)
		result.emit(model.CodeEntity{
			SlugID:   tempID,
			Type:     entityType,
			FileSlug: fileSlug,
			Snippet:  nodeText(node, src),
		})
		return tempID
	}

	emitImport := func(node *sitter.Node, target string) {
		target = strings.TrimSpace(target)
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
		case "function_item":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			fqn := qualify(node, nodeText(nameNode, src)) + rustParamString(node.ChildByFieldName("parameters"), src)
			tempID := emit(node, fqn, "FunctionDefinition")
			if body := node.ChildByFieldName("body"); body != nil {
				bodies = append(bodies, scanTarget{body: body, tempID: tempID})
			}

		case "struct_item":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, qualify(node, nodeText(name, src)), "StructDefinition")
			}
		case "enum_item":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, qualify(node, nodeText(name, src)), "EnumDefinition")
			}
		case "trait_item":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, qualify(node, nodeText(name, src)), "TraitDefinition")
			}
		case "mod_item":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, qualify(node, nodeText(name, src)), "ModuleDefinition")
			}
		case "macro_definition":
			if name := node.ChildByFieldName("name"); name != nil {
				emit(node, qualify(node, nodeText(name, src)), "MacroDefinition")
			}

		case "impl_item":
			// The implemented type names the block. A trait impl also yields
			// an IMPLEMENTS edge to the trait name.
			typeNode := node.ChildByFieldName("type")
			if typeNode == nil {
				break
			}
			typeName := stripTemplateArgs(strings.TrimSpace(nodeText(typeNode, src)))
			if typeName == "" {
				break
			}
			tempID := emit(node, qualify(node, typeName), "Implementation")
			if traitNode := node.ChildByFieldName("trait"); traitNode != nil {
				traitName := stripTemplateArgs(strings.TrimSpace(nodeText(traitNode, src)))
				if traitName != "" {
					result.emit(model.Relationship{
						SourceID: tempID,
						TargetID: traitName,
						Type:     model.RelImplements,
					})
				}
			}

		case "use_declaration":
			if arg := node.ChildByFieldName("argument"); arg != nil {
				emitImport(node, nodeText(arg, src))
			}
		case "extern_crate_declaration":
			if name := node.ChildByFieldName("name"); name != nil {
				emitImport(node, nodeText(name, src))
			}
		}
		eachChild(node, walk)
	}
	walk(root)

	for _, target := range bodies {
		scanRustCalls(target.body, target.tempID, fileSlug, src, result)
	}

	result.SliceLines = sortedSlices(sliceSet)
	return result
}

// scanRustCalls emits one CSR per call or method-call expression inside a
// function body. Nested items are scanned under their own entity.
func scanRustCalls(body *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "function_item", "impl_item", "mod_item":
			return
		case "call_expression":
			fn := node.ChildByFieldName("function")
			if fn == nil {
				break
			}
			called := strings.TrimSpace(nodeText(fn, src))
			switch fn.Kind() {
			case "field_expression":
				if field := fn.ChildByFieldName("field"); field != nil {
					called = nodeText(field, src)
				}
			case "scoped_identifier", "generic_function":
				called = stripTemplateArgs(called)
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
		eachChild(node, walk)
	}
	eachChild(body, walk)
}

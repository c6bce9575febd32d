package parser

import (
	"log/slog"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/model"
)

// binaryOperatorSymbols are the operators treated as call sites when used
// as binary expressions.
var binaryOperatorSymbols = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
	"<=>": true, ",": true,
}

// scanCallSites walks a function body and emits one CallSiteReference per
// call expression: plain and member calls, binary operator uses,
// constructor calls (both new and stack form), and delete expressions.
// Nested function definitions are scanned under their own entity.
func scanCallSites(body *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result, log *slog.Logger) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Kind() {
		case "function_definition":
			return
		case "call_expression":
			emitDirectCall(node, callerTempID, fileSlug, src, result, log)
		case "binary_expression":
			emitOperatorCall(node, callerTempID, fileSlug, src, result)
		case "new_expression":
			emitNewCall(node, callerTempID, fileSlug, src, result)
		case "delete_expression":
			emitDeleteCall(node, callerTempID, fileSlug, src, result)
		case "declaration":
			emitStackConstructorCall(node, callerTempID, fileSlug, src, result)
		}
		eachChild(node, walk)
	}
	eachChild(body, walk)
}

// calleeNameText resolves the called expression from a call_expression's
// function node, normalizing operators and stripping template arguments.
func calleeNameText(fn *sitter.Node, src []byte) string {
	switch fn.Kind() {
	case "field_expression":
		// obj.method() or ptr->method(): the field carries the name.
		if field := fn.ChildByFieldName("field"); field != nil {
			return entityNameText(field, src)
		}
	case "qualified_identifier":
		return normalizeOperatorName(stripTemplateArgs(nodeText(fn, src)))
	case "template_function":
		return entityNameText(fn, src)
	case "parenthesized_expression":
		inner := fn.NamedChild(0)
		if inner != nil {
			return stripTemplateArgs(strings.TrimSpace(nodeText(inner, src)))
		}
	}
	return normalizeOperatorName(stripTemplateArgs(nodeText(fn, src)))
}

func argumentInfo(args *sitter.Node, src []byte) (string, int) {
	if args == nil {
		return "", 0
	}
	text := nodeText(args, src)
	switch args.Kind() {
	case "argument_list", "arguments":
		text = strings.Trim(text, "()")
	case "initializer_list":
		text = strings.Trim(text, "{}")
	}
	return text, int(args.NamedChildCount())
}

func emitDirectCall(node *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result, log *slog.Logger) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	called := strings.TrimSpace(calleeNameText(fn, src))
	if called == "" {
		log.Debug("call site matched but no callable name extracted", "kind", fn.Kind())
		return
	}
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

func emitOperatorCall(node *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	op := node.ChildByFieldName("operator")
	if op == nil {
		return
	}
	symbol := nodeText(op, src)
	if !binaryOperatorSymbols[symbol] {
		return
	}
	left := nodeText(node.ChildByFieldName("left"), src)
	right := nodeText(node.ChildByFieldName("right"), src)
	result.emit(model.CallSiteReference{
		CallerTempID:  callerTempID,
		CalledExpr:    "operator" + symbol,
		Line0:         startRow(node),
		FileSlug:      fileSlug,
		RawArgs:       left + "," + right,
		ArgumentCount: 2,
	})
}

func emitNewCall(node *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	called := stripTemplateArgs(strings.TrimSpace(nodeText(typeNode, src)))
	if called == "" {
		return
	}
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

func emitDeleteCall(node *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	called := "operator delete"
	if strings.Contains(nodeText(node, src), "[]") {
		called = "operator delete[]"
	}

	var value *sitter.Node
	if v := node.ChildByFieldName("value"); v != nil {
		value = v
	} else {
		// Last named child that is not part of the delete syntax itself.
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			c := node.Child(uint(i))
			if c != nil && c.IsNamed() {
				value = c
				break
			}
		}
	}
	rawArgs := nodeText(value, src)
	argCount := 0
	if rawArgs != "" {
		argCount = 1
	}
	result.emit(model.CallSiteReference{
		CallerTempID:  callerTempID,
		CalledExpr:    called,
		Line0:         startRow(node),
		FileSlug:      fileSlug,
		RawArgs:       rawArgs,
		ArgumentCount: argCount,
	})
}

// emitStackConstructorCall handles declarations of the form
// "Type obj(args);" or "Type obj{args};" inside a function body.
func emitStackConstructorCall(node *sitter.Node, callerTempID, fileSlug string, src []byte, result *Result) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	switch typeNode.Kind() {
	case "type_identifier", "qualified_identifier", "template_type":
	default:
		return
	}
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil || declarator.Kind() != "init_declarator" {
		return
	}
	value := declarator.ChildByFieldName("value")
	if value == nil {
		return
	}
	if value.Kind() != "argument_list" && value.Kind() != "initializer_list" {
		return
	}

	called := stripTemplateArgs(strings.TrimSpace(nodeText(typeNode, src)))
	if called == "" {
		return
	}
	rawArgs, argCount := argumentInfo(value, src)
	result.emit(model.CallSiteReference{
		CallerTempID:  callerTempID,
		CalledExpr:    called,
		Line0:         startRow(node),
		FileSlug:      fileSlug,
		RawArgs:       rawArgs,
		ArgumentCount: argCount,
	})
}

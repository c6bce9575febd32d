package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// cppParser extracts entities, relationships, and call-site references from
// C++ sources. Temporary entity ids use the "<FQN>@<0-indexed-line>" form.
type cppParser struct {
	language *sitter.Language
}

func newCppParser() (*cppParser, error) {
	g := grammarFor("cpp")
	if g == nil {
		return nil, fmt.Errorf("cpp grammar not available")
	}
	return &cppParser{language: g}, nil
}

func (p *cppParser) Language() string { return "cpp" }

// cppExtraction accumulates state for one file.
type cppExtraction struct {
	fileSlug string
	src      []byte
	root     *sitter.Node
	log      *slog.Logger
	result   *Result

	sliceSet        map[int]bool
	processedDefs   map[uint]bool
	seenExternals   map[string]bool
	seenImports     map[string]bool
	seenDirectives  map[string]bool
	seenUsingRels   map[string]bool
	functionBodies  []scanTarget
}

type scanTarget struct {
	body   *sitter.Node
	tempID string
}

func (p *cppParser) Parse(_ context.Context, fileSlug, content string) *Result {
	log := logging.Component("parser.cpp").With("file", fileSlug)

	if strings.TrimSpace(content) == "" {
		log.Debug("empty or whitespace-only content")
		return &Result{SliceLines: model.SliceLines{}}
	}

	src := []byte(content)
	tree, err := parseTree(p.language, src)
	if err != nil {
		log.Error("failed to build AST", "error", err)
		return &Result{SliceLines: model.SliceLines{0}}
	}
	defer tree.Close()

	ex := &cppExtraction{
		fileSlug:       fileSlug,
		src:            src,
		root:           tree.RootNode(),
		log:            log,
		result:         &Result{},
		sliceSet:       map[int]bool{0: true},
		processedDefs:  map[uint]bool{},
		seenExternals:  map[string]bool{},
		seenImports:    map[string]bool{},
		seenDirectives: map[string]bool{},
		seenUsingRels:  map[string]bool{},
	}

	ex.walk(ex.root)

	for _, target := range ex.functionBodies {
		scanCallSites(target.body, target.tempID, fileSlug, src, ex.result, log)
	}

	ex.result.SliceLines = sortedSlices(ex.sliceSet)
	return ex.result
}

func sortedSlices(set map[int]bool) model.SliceLines {
	out := make([]int, 0, len(set))
	for line := range set {
		out = append(out, line)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (ex *cppExtraction) walk(node *sitter.Node) {
	switch node.Kind() {
	case "preproc_include":
		ex.handleInclude(node)
	case "namespace_definition":
		ex.emitEntity(node, node.ChildByFieldName("name"), "NamespaceDefinition")
	case "class_specifier":
		ex.handleClassLike(node, "ClassDefinition")
	case "struct_specifier":
		ex.handleClassLike(node, "StructDefinition")
	case "enum_specifier":
		if node.ChildByFieldName("name") != nil {
			ex.emitEntity(node, node.ChildByFieldName("name"), "EnumDefinition")
		}
	case "type_definition", "alias_declaration":
		ex.handleTypeAlias(node)
	case "namespace_alias_definition":
		ex.handleNamespaceAlias(node)
	case "using_declaration":
		ex.handleUsingDirective(node)
	case "function_definition":
		ex.handleFunctionDefinition(node)
	case "declaration", "field_declaration":
		ex.handleDeclaration(node)
	case "template_declaration":
		ex.handleTemplate(node)
	}

	eachChild(node, ex.walk)
}

// emitEntity yields one CodeEntity with its temporary slug, marking the
// definition node processed and recording its slice line. Returns the temp
// id, or "" when the entity was skipped.
func (ex *cppExtraction) emitEntity(defNode *sitter.Node, nameNode *sitter.Node, entityType string) string {
	if ex.processedDefs[defNode.StartByte()] {
		return ""
	}

	if entityType == "NamespaceDefinition" && nameNode == nil {
		// Anonymous namespace: skip only when empty.
		body := defNode.ChildByFieldName("body")
		if body == nil || body.NamedChildCount() == 0 {
			return ""
		}
	} else if nameNode == nil && entityType != "NamespaceAliasDefinition" {
		return ""
	}

	fqn := fqnFor(nameNode, defNode, ex.root, ex.src)
	if fqn == "" || (strings.Contains(fqn, "unnamed_entity") && entityType != "NamespaceDefinition") {
		ex.log.Debug("skipping entity with invalid fqn", "fqn", fqn, "type", entityType)
		return ""
	}

	line0 := startRow(defNode)
	tempID := model.TempEntitySlug(fqn, line0)
	ex.processedDefs[defNode.StartByte()] = true
	ex.sliceSet[line0] = true

	ex.result.emit(model.CodeEntity{
		SlugID:   tempID,
		Type:     entityType,
		FileSlug: ex.fileSlug,
		Snippet:  nodeText(defNode, ex.src),
	})
	return tempID
}

func (ex *cppExtraction) handleClassLike(node *sitter.Node, entityType string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	tempID := ex.emitEntity(node, nameNode, entityType)
	if tempID == "" {
		return
	}

	heritage := firstChildOfKind(node, "base_class_clause")
	if heritage == nil {
		return
	}
	seen := map[string]bool{}
	eachNamedChild(heritage, func(parent *sitter.Node) {
		switch parent.Kind() {
		case "type_identifier", "qualified_identifier", "template_type":
			name := strings.Join(strings.Fields(nodeText(parent, ex.src)), " ")
			if name != "" && !seen[name] {
				seen[name] = true
				ex.result.emit(model.Relationship{
					SourceID: tempID,
					TargetID: name,
					Type:     model.RelExtends,
				})
			}
		}
	})
}

func (ex *cppExtraction) handleTypeAlias(node *sitter.Node) {
	var nameNode *sitter.Node
	if node.Kind() == "alias_declaration" {
		nameNode = node.ChildByFieldName("name")
	} else {
		// typedef: the declarator carries the new name, possibly nested in
		// pointer/array/function declarators.
		d := node.ChildByFieldName("declarator")
		for depth := 0; d != nil && depth < 4; depth++ {
			if d.Kind() == "type_identifier" || d.Kind() == "identifier" {
				nameNode = d
				break
			}
			next := d.ChildByFieldName("declarator")
			if next == nil {
				next = firstChildOfKind(d, "type_identifier")
				if next == nil {
					next = firstChildOfKind(d, "identifier")
				}
			}
			d = next
		}
	}
	if nameNode == nil {
		return
	}
	ex.emitEntity(node, nameNode, "TypeAlias")
}

func (ex *cppExtraction) handleNamespaceAlias(node *sitter.Node) {
	// namespace X = Y; the first namespace_identifier is the new alias name.
	nameNode := firstChildOfKind(node, "namespace_identifier")
	if nameNode == nil {
		return
	}
	ex.emitEntity(node, nameNode, "NamespaceAliasDefinition")
}

func (ex *cppExtraction) handleFunctionDefinition(node *sitter.Node) {
	fd := findFunctionDeclarator(node)
	if fd == nil {
		return
	}
	tempID := ex.emitEntity(node, declaratorNameNode(fd), "FunctionDefinition")
	if tempID == "" {
		return
	}
	if body := node.ChildByFieldName("body"); body != nil {
		ex.functionBodies = append(ex.functionBodies, scanTarget{body: body, tempID: tempID})
	}
}

func (ex *cppExtraction) handleDeclaration(node *sitter.Node) {
	fd := findFunctionDeclarator(node)
	if fd == nil {
		return
	}
	// A declarator with an initializer is a variable, not a declaration.
	if d := node.ChildByFieldName("declarator"); d != nil && d.Kind() == "init_declarator" {
		return
	}
	nameNode := declaratorNameNode(fd)
	if nameNode == nil {
		return
	}
	ex.emitEntity(node, nameNode, "FunctionDeclaration")
}

func (ex *cppExtraction) handleTemplate(node *sitter.Node) {
	inner := templateInnerNode(node)
	if inner == nil || ex.processedDefs[node.StartByte()] {
		return
	}

	switch inner.Kind() {
	case "function_definition":
		fd := findFunctionDeclarator(inner)
		if fd == nil {
			return
		}
		tempID := ex.emitEntity(node, declaratorNameNode(fd), "FunctionDefinition")
		ex.processedDefs[inner.StartByte()] = true
		if tempID != "" {
			if body := inner.ChildByFieldName("body"); body != nil {
				ex.functionBodies = append(ex.functionBodies, scanTarget{body: body, tempID: tempID})
			}
		}
	case "declaration":
		fd := findFunctionDeclarator(inner)
		if fd == nil {
			return
		}
		ex.emitEntity(node, declaratorNameNode(fd), "FunctionDeclaration")
		ex.processedDefs[inner.StartByte()] = true
	case "class_specifier":
		ex.processedDefs[inner.StartByte()] = true
		ex.handleTemplateClass(node, inner, "ClassDefinition")
	case "struct_specifier":
		ex.processedDefs[inner.StartByte()] = true
		ex.handleTemplateClass(node, inner, "StructDefinition")
	case "alias_declaration", "type_definition":
		ex.emitEntity(node, inner.ChildByFieldName("name"), "TypeAlias")
		ex.processedDefs[inner.StartByte()] = true
	}
}

func (ex *cppExtraction) handleTemplateClass(tmpl, inner *sitter.Node, entityType string) {
	nameNode := inner.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	tempID := ex.emitEntity(tmpl, nameNode, entityType)
	if tempID == "" {
		return
	}
	if heritage := firstChildOfKind(inner, "base_class_clause"); heritage != nil {
		eachNamedChild(heritage, func(parent *sitter.Node) {
			switch parent.Kind() {
			case "type_identifier", "qualified_identifier", "template_type":
				name := strings.Join(strings.Fields(nodeText(parent, ex.src)), " ")
				if name != "" {
					ex.result.emit(model.Relationship{SourceID: tempID, TargetID: name, Type: model.RelExtends})
				}
			}
		})
	}
}

// handleInclude emits one deduplicated ExternalReference per include target
// plus the file's IMPORTS edge. System headers without path separators are
// qualified as std::.
func (ex *cppExtraction) handleInclude(node *sitter.Node) {
	target := node.ChildByFieldName("path")
	if target == nil {
		return
	}
	raw := nodeText(target, ex.src)
	if raw == "" {
		return
	}
	canonical := strings.Trim(raw, `<>"`)
	if canonical == "" {
		return
	}
	externalFQN := canonical
	if strings.HasPrefix(raw, "<") &&
		!strings.Contains(canonical, "::") && !strings.Contains(canonical, ".") && !strings.Contains(canonical, "/") {
		externalFQN = "std::" + canonical
	}

	line0 := startRow(node)
	ex.sliceSet[line0] = true
	tempRefID := model.TempEntitySlug(externalFQN, line0)

	// Dedup by FQN, not by line: the same header included twice yields one
	// ExternalReference and one IMPORTS edge.
	if !ex.seenExternals[externalFQN] {
		ex.seenExternals[externalFQN] = true
		ex.result.emit(model.CodeEntity{
			SlugID:   tempRefID,
			Type:     "ExternalReference",
			FileSlug: ex.fileSlug,
			Snippet:  externalFQN,
		})
		if !ex.seenImports[externalFQN] {
			ex.seenImports[externalFQN] = true
			ex.result.emit(model.Relationship{
				SourceID: ex.fileSlug,
				TargetID: tempRefID,
				Type:     model.RelImports,
			})
		}
	}
}

func (ex *cppExtraction) handleUsingDirective(node *sitter.Node) {
	if firstChildOfKind(node, "namespace") == nil {
		return
	}
	var nameNode *sitter.Node
	eachNamedChild(node, func(c *sitter.Node) {
		if nameNode != nil {
			return
		}
		switch c.Kind() {
		case "identifier", "nested_namespace_specifier", "qualified_identifier":
			nameNode = c
		}
	})
	if nameNode == nil {
		return
	}
	namespaceName := strings.Join(strings.Fields(nodeText(nameNode, ex.src)), " ")
	if namespaceName == "" {
		return
	}

	line0 := startRow(node)
	ex.sliceSet[line0] = true
	directiveFQN := "using_namespace_directive_referencing::" + namespaceName
	tempDirectiveID := model.TempEntitySlug(directiveFQN, line0)

	if !ex.seenDirectives[tempDirectiveID] {
		ex.seenDirectives[tempDirectiveID] = true
		ex.result.emit(model.CodeEntity{
			SlugID:   tempDirectiveID,
			Type:     "UsingDirective",
			FileSlug: ex.fileSlug,
			Snippet:  nodeText(node, ex.src),
		})
	}

	hasKey := ex.fileSlug + "->" + tempDirectiveID
	if !ex.seenUsingRels[hasKey] {
		ex.seenUsingRels[hasKey] = true
		ex.result.emit(model.Relationship{
			SourceID: ex.fileSlug,
			TargetID: tempDirectiveID,
			Type:     model.RelHasDirective,
		})
	}
	refKey := tempDirectiveID + "->" + namespaceName
	if !ex.seenUsingRels[refKey] {
		ex.seenUsingRels[refKey] = true
		ex.result.emit(model.Relationship{
			SourceID: tempDirectiveID,
			TargetID: namespaceName,
			Type:     model.RelReferencesNamespace,
		})
	}
}

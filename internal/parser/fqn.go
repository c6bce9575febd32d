package parser

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// astScopesForFQN are the node kinds climbed when qualifying an entity name.
var astScopesForFQN = map[string]bool{
	"namespace_definition": true,
	"class_specifier":      true,
	"struct_specifier":     true,
	"function_definition":  true,
	"template_declaration": true,
}

var (
	templateArgsRe = regexp.MustCompile(`^([^<]+)(?:<.*>)?$`)
	operatorRe     = regexp.MustCompile(`((?:[\w:]*::)?operator)\s*` +
		`(new(?:\[\])?|delete(?:\[\])?|co_await|` +
		`[*&+\-/%^|!=<>~,]+(?:\[\])?|\(\)|\[\]|` +
		`[^\w\s();{}\[\]:<>,.*&%#!~^|=]+(?:\[\])?|` +
		`\w+)`)
)

// normalizeOperatorName standardizes operator spellings: bare symbols
// become "operator<symbol>", and spacing is fixed so that keyword forms
// keep one space ("operator new[]") while symbol forms keep none
// ("operator+", "operator[]").
func normalizeOperatorName(name string) string {
	stripped := strings.TrimSpace(name)
	if stripped == "" {
		return name
	}

	if !strings.HasPrefix(strings.ToLower(stripped), "operator") && !isAlnum(stripped) {
		switch {
		case stripped == "()":
			return "operator()"
		case stripped == "[]":
			return "operator[]"
		case len(stripped) <= 3 && !isAlnumByte(stripped[0]):
			return "operator" + stripped
		}
	}

	if strings.Contains(name, "operator") {
		if m := operatorRe.FindStringSubmatch(name); m != nil {
			keyword, symbol := m[1], strings.TrimSpace(m[2])
			switch symbol {
			case "new", "delete", "co_await", "new[]", "delete[]":
				return keyword + " " + symbol
			default:
				return keyword + symbol
			}
		}
	}
	return name
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isAlnumByte(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

func isAlnumByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// entityNameText extracts and normalizes the name carried by a name node:
// template arguments are stripped and operator spellings standardized.
func entityNameText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	name := nodeText(node, src)
	if name == "" {
		return ""
	}

	if node.Kind() == "template_function" {
		if nameChild := node.ChildByFieldName("name"); nameChild != nil {
			name = nodeText(nameChild, src)
		} else if m := templateArgsRe.FindStringSubmatch(name); m != nil {
			name = strings.TrimSpace(m[1])
		}
	}

	return normalizeOperatorName(name)
}

// stripTemplateArgs removes a trailing template argument list from a
// callee expression: "make_pair<int,int>" -> "make_pair".
func stripTemplateArgs(name string) string {
	if i := strings.Index(name, "<"); i > 0 && strings.HasSuffix(name, ">") {
		return strings.TrimSpace(name[:i])
	}
	return name
}

// scopeNameFor returns the FQN contribution of one enclosing scope node.
// Anonymous namespaces contribute "anonymous". A template_declaration
// contributes the name of the entity it declares unless that entity is the
// one being qualified (selfBaseName), in which case it contributes nothing.
func scopeNameFor(scope *sitter.Node, src []byte, selfBaseName string) (string, bool) {
	switch scope.Kind() {
	case "function_definition":
		// Function names are part of the entity itself, never a scope prefix.
		return "", false
	case "template_declaration":
		inner := templateInnerNode(scope)
		if inner == nil {
			return "", false
		}
		innerName := entityNameText(innerNameNode(inner), src)
		selfNoParams := selfBaseName
		if i := strings.Index(selfNoParams, "("); i >= 0 {
			selfNoParams = selfNoParams[:i]
		}
		if innerName == "" || innerName == selfNoParams {
			return "", false
		}
		return innerName, true
	default:
		if nameNode := scope.ChildByFieldName("name"); nameNode != nil {
			if text := entityNameText(nameNode, src); text != "" {
				return text, true
			}
		}
		// Anonymous namespace (or unnamed class/struct scope).
		return "anonymous", true
	}
}

// templateInnerNode finds the declared entity inside a template_declaration.
func templateInnerNode(tmpl *sitter.Node) *sitter.Node {
	var inner *sitter.Node
	eachChild(tmpl, func(c *sitter.Node) {
		if inner != nil {
			return
		}
		switch c.Kind() {
		case "function_definition", "class_specifier", "struct_specifier",
			"alias_declaration", "type_definition", "declaration":
			inner = c
		}
	})
	return inner
}

// innerNameNode locates the name-bearing node of a definition or
// declaration, descending through declarators for functions.
func innerNameNode(def *sitter.Node) *sitter.Node {
	switch def.Kind() {
	case "function_definition", "declaration", "field_declaration":
		if fd := findFunctionDeclarator(def); fd != nil {
			return declaratorNameNode(fd)
		}
		return def.ChildByFieldName("name")
	default:
		return def.ChildByFieldName("name")
	}
}

// findFunctionDeclarator descends a definition node to its
// function_declarator, looking through pointer and reference declarators.
func findFunctionDeclarator(def *sitter.Node) *sitter.Node {
	var search func(n *sitter.Node, depth int) *sitter.Node
	search = func(n *sitter.Node, depth int) *sitter.Node {
		if n == nil || depth > 4 {
			return nil
		}
		if n.Kind() == "function_declarator" {
			return n
		}
		if d := n.ChildByFieldName("declarator"); d != nil {
			if found := search(d, depth+1); found != nil {
				return found
			}
		}
		var found *sitter.Node
		eachChild(n, func(c *sitter.Node) {
			if found == nil && c.Kind() == "function_declarator" {
				found = c
			}
		})
		return found
	}

	switch def.Kind() {
	case "template_declaration":
		if inner := templateInnerNode(def); inner != nil {
			return search(inner, 0)
		}
		return nil
	default:
		return search(def, 0)
	}
}

// declaratorNameNode returns the identifier-like node inside a
// function_declarator.
func declaratorNameNode(fd *sitter.Node) *sitter.Node {
	d := fd.ChildByFieldName("declarator")
	for depth := 0; d != nil && depth < 4; depth++ {
		switch d.Kind() {
		case "identifier", "field_identifier", "type_identifier",
			"destructor_name", "operator_name", "qualified_identifier":
			return d
		}
		d = d.ChildByFieldName("declarator")
	}
	return nil
}

// fqnFor computes the fully qualified name of an entity: scope path joined
// with "::", the (possibly qualified) base name merged via longest-prefix
// overlap, constructors/destructors preserved uncollapsed, and a
// normalized parameter list appended for function-like entities.
func fqnFor(nameNode *sitter.Node, defNode, root *sitter.Node, src []byte) string {
	baseName := "anonymous"
	if nameNode != nil {
		if text := entityNameText(nameNode, src); text != "" {
			baseName = text
		} else {
			baseName = "unnamed_entity"
		}
	} else if defNode.Kind() != "namespace_definition" {
		baseName = "unnamed_entity"
	}

	// Climb named scopes from the definition outward.
	var scopesOutward []string
	for climb := defNode.Parent(); climb != nil && climb != root; climb = climb.Parent() {
		if !astScopesForFQN[climb.Kind()] {
			continue
		}
		if name, ok := scopeNameFor(climb, src, baseName); ok {
			scopesOutward = append(scopesOutward, name)
		}
	}
	// Reverse to root-first order.
	prefix := make([]string, 0, len(scopesOutward))
	for i := len(scopesOutward) - 1; i >= 0; i-- {
		prefix = append(prefix, scopesOutward[i])
	}

	var parts []string
	leadingColons := ""
	if nameNode != nil && nameNode.Kind() == "qualified_identifier" {
		qualified := baseName
		if strings.HasPrefix(qualified, "::") {
			leadingColons = "::"
			qualified = strings.TrimLeft(qualified, ":")
		}
		segments := splitNonEmpty(qualified, "::")

		// Merge scope prefix with the qualified segments: drop the longest
		// suffix of the prefix that is also a prefix of the segments.
		overlap := 0
		for k := 1; k <= min(len(prefix), len(segments)); k++ {
			if equalSlices(prefix[len(prefix)-k:], segments[:k]) {
				overlap = k
			}
		}
		parts = append(append(parts, prefix...), segments[overlap:]...)
	} else {
		parts = append(append(parts, prefix...), baseName)
	}

	// Collapse adjacent duplicates, except constructors (Class::Class) and
	// destructors (Class::~Class) which must stay uncollapsed.
	selfName := baseName
	if i := strings.LastIndex(selfName, "::"); i >= 0 {
		selfName = selfName[i+2:]
	}
	var unique []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(unique) > 0 {
			prev := unique[len(unique)-1]
			ctor := part == prev && !strings.HasPrefix(part, "~")
			dtor := strings.HasPrefix(part, "~") && part[1:] == prev
			isSelf := nameNode != nil && part == selfName
			if part == prev && !(isSelf && (ctor || dtor)) {
				continue
			}
		}
		unique = append(unique, part)
	}

	fqn := leadingColons + strings.Join(unique, "::")
	if fqn == "" || fqn == "::" {
		fqn = baseName
	}

	if isFunctionLikeDef(defNode) {
		fqn += paramStringFor(defNode, src)
	}
	return fqn
}

func isFunctionLikeDef(def *sitter.Node) bool {
	switch def.Kind() {
	case "function_definition", "declaration", "field_declaration":
		return findFunctionDeclarator(def) != nil
	case "template_declaration":
		inner := templateInnerNode(def)
		return inner != nil && inner.Kind() != "class_specifier" && inner.Kind() != "struct_specifier" &&
			findFunctionDeclarator(def) != nil
	}
	return false
}

// paramStringFor builds the normalized "(T1,T2)" parameter suffix: names
// stripped, whitespace collapsed, pointer/reference/array markers kept
// adjacent to their type, "(void)" and empty lists both rendered as "()".
func paramStringFor(def *sitter.Node, src []byte) string {
	fd := findFunctionDeclarator(def)
	if fd == nil {
		return "()"
	}
	paramList := fd.ChildByFieldName("parameters")
	if paramList == nil || paramList.Kind() != "parameter_list" {
		return "()"
	}

	var types []string
	eachNamedChild(paramList, func(param *sitter.Node) {
		switch param.Kind() {
		case "parameter_declaration", "optional_parameter_declaration":
			if t := parameterTypeText(param, src); t != "" && t != "void" {
				types = append(types, t)
			}
		case "variadic_parameter_declaration":
			types = append(types, "...")
		case "comment":
			// ignore
		default:
			if t := normalizeTypeSpacing(nodeText(param, src)); t != "" && t != "void" {
				types = append(types, t)
			}
		}
	})

	if len(types) == 0 {
		return "()"
	}
	return "(" + strings.Join(types, ",") + ")"
}

// parameterTypeText extracts the type portion of one parameter
// declaration: the declared type plus any declarator modifiers (*, &, [])
// with the parameter name and default value removed.
func parameterTypeText(param *sitter.Node, src []byte) string {
	declarator := param.ChildByFieldName("declarator")
	if declarator == nil && param.Kind() == "optional_parameter_declaration" {
		declarator = param.ChildByFieldName("name")
	}

	// Base type: every child before the declarator, skipping "=" and the
	// default value.
	defaultValue := param.ChildByFieldName("default_value")
	var baseParts []string
	eachChild(param, func(c *sitter.Node) {
		if declarator != nil && c.StartByte() >= declarator.StartByte() {
			return
		}
		if defaultValue != nil && c.StartByte() >= defaultValue.StartByte() {
			return
		}
		if c.Kind() == "=" {
			return
		}
		baseParts = append(baseParts, nodeText(c, src))
	})
	baseType := strings.TrimSpace(strings.Join(filterNonEmpty(baseParts), " "))
	if baseType == "" {
		if typeNode := param.ChildByFieldName("type"); typeNode != nil {
			baseType = strings.TrimSpace(nodeText(typeNode, src))
		}
	}

	modifiers := ""
	if declarator != nil {
		declText := strings.TrimSpace(nodeText(declarator, src))
		if defaultValue != nil {
			if eq := strings.LastIndex(declText, "="); eq >= 0 {
				declText = strings.TrimSpace(declText[:eq])
			}
		}
		if name := declaratorIdentifierText(declarator, src); name != "" {
			declText = removeIdentifier(declText, name)
		}
		modifiers = strings.TrimSpace(declText)
	}

	var typeText string
	switch {
	case baseType != "" && modifiers != "":
		typeText = baseType + " " + modifiers
	case baseType != "":
		typeText = baseType
	case modifiers != "":
		typeText = modifiers
	default:
		typeText = strings.TrimSpace(nodeText(param, src))
	}
	return normalizeTypeSpacing(typeText)
}

// declaratorIdentifierText finds the parameter name inside a declarator.
func declaratorIdentifierText(declarator *sitter.Node, src []byte) string {
	if declarator.Kind() == "identifier" {
		return nodeText(declarator, src)
	}
	current := declarator
	for depth := 0; current != nil && depth < 5; depth++ {
		if current.Kind() == "identifier" {
			return nodeText(current, src)
		}
		if id := firstChildOfKind(current, "identifier"); id != nil {
			return nodeText(id, src)
		}
		current = current.ChildByFieldName("declarator")
	}
	return ""
}

// removeIdentifier drops the parameter name from a declarator's text,
// leaving only modifiers like "*", "&", or "[]".
func removeIdentifier(declText, name string) string {
	if i := strings.Index(declText, name); i >= 0 {
		return declText[:i] + declText[i+len(name):]
	}
	return declText
}

// normalizeTypeSpacing collapses whitespace and glues pointer, reference,
// and array markers to their type.
func normalizeTypeSpacing(t string) string {
	t = strings.Join(strings.Fields(t), " ")
	t = strings.ReplaceAll(t, " &", "&")
	t = strings.ReplaceAll(t, " *", "*")
	t = strings.ReplaceAll(t, " [", "[")
	t = strings.ReplaceAll(t, "* []", "*[]")
	t = strings.ReplaceAll(t, "[ ]", "[]")
	return t
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func filterNonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

const cppFileSlug = "local/proj:src/sample.cpp"

func parseCpp(t *testing.T, content string) *Result {
	t.Helper()
	p, err := newCppParser()
	require.NoError(t, err)
	return p.Parse(context.Background(), cppFileSlug, content)
}

func entitiesOf(result *Result) []model.CodeEntity {
	var out []model.CodeEntity
	for _, item := range result.Items {
		if e, ok := item.(model.CodeEntity); ok {
			out = append(out, e)
		}
	}
	return out
}

func relationshipsOf(result *Result) []model.Relationship {
	var out []model.Relationship
	for _, item := range result.Items {
		if r, ok := item.(model.Relationship); ok {
			out = append(out, r)
		}
	}
	return out
}

func callSitesOf(result *Result) []model.CallSiteReference {
	var out []model.CallSiteReference
	for _, item := range result.Items {
		if c, ok := item.(model.CallSiteReference); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestCppParserEmptyContent(t *testing.T) {
	result := parseCpp(t, "")
	assert.Equal(t, model.SliceLines{}, result.SliceLines)
	assert.Empty(t, result.Items)

	result = parseCpp(t, "\n\n  \n")
	assert.Equal(t, model.SliceLines{}, result.SliceLines)
}

func TestCppParserIncludeDedup(t *testing.T) {
	result := parseCpp(t, "#include <stdio.h>\n#include <stdio.h>\nint main() { return 0; }\n")

	var externals []model.CodeEntity
	for _, e := range entitiesOf(result) {
		if e.Type == "ExternalReference" {
			externals = append(externals, e)
		}
	}
	require.Len(t, externals, 1, "duplicate includes yield one ExternalReference")
	assert.True(t, strings.HasPrefix(externals[0].SlugID, "stdio.h@"))

	imports := 0
	for _, r := range relationshipsOf(result) {
		if r.Type == model.RelImports {
			imports++
			assert.Equal(t, cppFileSlug, r.SourceID)
		}
	}
	assert.Equal(t, 1, imports, "duplicate includes yield one IMPORTS edge")
}

func TestCppParserSystemHeaderGetsStdPrefix(t *testing.T) {
	result := parseCpp(t, "#include <vector>\n")
	entities := entitiesOf(result)
	require.Len(t, entities, 1)
	assert.True(t, strings.HasPrefix(entities[0].SlugID, "std::vector@"))
}

func TestCppParserConstructorFQNNotCollapsed(t *testing.T) {
	result := parseCpp(t, "class Foo {\npublic:\n  Foo(int x);\n};\n")

	var fqns []string
	for _, e := range entitiesOf(result) {
		fqn, _, ok := model.SplitTempEntitySlug(e.SlugID)
		require.True(t, ok, "slug %q must carry a line suffix", e.SlugID)
		fqns = append(fqns, fqn)
	}
	assert.Contains(t, fqns, "Foo")
	assert.Contains(t, fqns, "Foo::Foo(int)")
}

func TestCppParserAnonymousNamespace(t *testing.T) {
	result := parseCpp(t, "namespace {\nvoid g();\n}\n")

	var fqns []string
	for _, e := range entitiesOf(result) {
		fqn, _, _ := model.SplitTempEntitySlug(e.SlugID)
		fqns = append(fqns, fqn)
	}
	assert.Contains(t, fqns, "anonymous::g()")
}

func TestCppParserNamespaceScoping(t *testing.T) {
	content := `namespace outer {
namespace inner {
void work(int a, int b);
}
}
`
	result := parseCpp(t, content)
	var fqns []string
	for _, e := range entitiesOf(result) {
		fqn, _, _ := model.SplitTempEntitySlug(e.SlugID)
		fqns = append(fqns, fqn)
	}
	assert.Contains(t, fqns, "outer")
	assert.Contains(t, fqns, "outer::inner")
	assert.Contains(t, fqns, "outer::inner::work(int,int)")
}

func TestCppParserExtends(t *testing.T) {
	result := parseCpp(t, "class Base {};\nclass Derived : public Base {\n};\n")

	var extends []model.Relationship
	for _, r := range relationshipsOf(result) {
		if r.Type == model.RelExtends {
			extends = append(extends, r)
		}
	}
	require.Len(t, extends, 1)
	assert.True(t, strings.HasPrefix(extends[0].SourceID, "Derived@"))
	assert.Equal(t, "Base", extends[0].TargetID)
}

func TestCppParserOperatorCallSite(t *testing.T) {
	content := `struct Vec {};
Vec operator+(const Vec&, const Vec&);
void use() {
  Vec a, b;
  Vec c = a + b;
}
`
	result := parseCpp(t, content)

	var operatorCalls []model.CallSiteReference
	for _, c := range callSitesOf(result) {
		if c.CalledExpr == "operator+" {
			operatorCalls = append(operatorCalls, c)
		}
	}
	require.Len(t, operatorCalls, 1)
	assert.Equal(t, 2, operatorCalls[0].ArgumentCount)
	assert.Equal(t, "a,b", operatorCalls[0].RawArgs)
	assert.True(t, strings.HasPrefix(operatorCalls[0].CallerTempID, "use()@"))

	// The operator declaration itself is captured with normalized params.
	var fqns []string
	for _, e := range entitiesOf(result) {
		fqn, _, _ := model.SplitTempEntitySlug(e.SlugID)
		fqns = append(fqns, fqn)
	}
	assert.Contains(t, fqns, "operator+(const Vec&,const Vec&)")
}

func TestCppParserNewAndDeleteCallSites(t *testing.T) {
	content := `struct Widget { Widget(int n); };
void churn() {
  Widget* w = new Widget(3);
  delete w;
}
`
	result := parseCpp(t, content)
	calls := callSitesOf(result)

	var exprs []string
	for _, c := range calls {
		exprs = append(exprs, c.CalledExpr)
	}
	assert.Contains(t, exprs, "Widget")
	assert.Contains(t, exprs, "operator delete")
}

func TestCppParserUsingDirective(t *testing.T) {
	result := parseCpp(t, "namespace util { void f(); }\nusing namespace util;\n")

	var directive *model.CodeEntity
	for _, e := range entitiesOf(result) {
		if e.Type == "UsingDirective" {
			copied := e
			directive = &copied
		}
	}
	require.NotNil(t, directive)
	assert.Contains(t, directive.SlugID, "using_namespace_directive_referencing::util")

	var types []string
	for _, r := range relationshipsOf(result) {
		types = append(types, r.Type)
	}
	assert.Contains(t, types, model.RelHasDirective)
	assert.Contains(t, types, model.RelReferencesNamespace)
}

func TestCppParserSliceLinesStartAtZero(t *testing.T) {
	result := parseCpp(t, "#include <vector>\n\nint main() { return 0; }\n")
	require.NotEmpty(t, result.SliceLines)
	assert.Equal(t, 0, result.SliceLines[0])
	for i := 1; i < len(result.SliceLines); i++ {
		assert.Greater(t, result.SliceLines[i], result.SliceLines[i-1])
	}
}

func TestCppParserMalformedInputStillYieldsSlices(t *testing.T) {
	result := parseCpp(t, "class {{{ not valid c++ at all ]]\n")
	require.NotEmpty(t, result.SliceLines)
	assert.Equal(t, 0, result.SliceLines[0])
}

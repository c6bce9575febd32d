package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

const rsFileSlug = "local/proj:src/lib.rs"

func parseRust(t *testing.T, content string) *Result {
	t.Helper()
	p, err := newRustParser()
	require.NoError(t, err)
	return p.Parse(context.Background(), rsFileSlug, content)
}

func TestRustParserEmptyContent(t *testing.T) {
	result := parseRust(t, "")
	assert.Equal(t, model.SliceLines{}, result.SliceLines)
	assert.Empty(t, result.Items)
}

func TestRustParserEntityFQNs(t *testing.T) {
	content := `mod geometry {
    pub struct Point {
        x: i32,
    }

    impl Point {
        pub fn norm(&self, scale: i32) -> i32 {
            self.x * scale
        }
    }

    pub enum Shape {
        Circle,
    }

    pub trait Draw {
        fn draw(&self);
    }
}

pub fn standalone(v: i32) -> i32 {
    v
}
`
	result := parseRust(t, content)

	var fqns []string
	for _, e := range entitiesOf(result) {
		fqn, _, _ := model.SplitTempEntitySlug(e.SlugID)
		fqns = append(fqns, fqn)
	}
	assert.Contains(t, fqns, "geometry")
	assert.Contains(t, fqns, "geometry::Point")
	assert.Contains(t, fqns, "geometry::Point::norm(i32)")
	assert.Contains(t, fqns, "geometry::Shape")
	assert.Contains(t, fqns, "geometry::Draw")
	assert.Contains(t, fqns, "standalone(i32)")
}

func TestRustParserTraitImplEmitsImplements(t *testing.T) {
	content := `trait Greet {
    fn hi(&self);
}
struct Person;
impl Greet for Person {
    fn hi(&self) {}
}
`
	result := parseRust(t, content)

	var implements []model.Relationship
	for _, r := range relationshipsOf(result) {
		if r.Type == model.RelImplements {
			implements = append(implements, r)
		}
	}
	require.Len(t, implements, 1)
	assert.True(t, strings.HasPrefix(implements[0].SourceID, "Person@"))
	assert.Equal(t, "Greet", implements[0].TargetID)
}

func TestRustParserUseDeclarationsDeduplicated(t *testing.T) {
	content := "use std::collections::HashMap;\nuse std::collections::HashMap;\nextern crate serde;\n"
	result := parseRust(t, content)

	var imports []model.CodeEntity
	for _, e := range entitiesOf(result) {
		if e.Type == "ExternalReference" {
			imports = append(imports, e)
		}
	}
	require.Len(t, imports, 2)

	var targets []string
	for _, imp := range imports {
		fqn, _, _ := model.SplitTempEntitySlug(imp.SlugID)
		targets = append(targets, fqn)
	}
	assert.Contains(t, targets, "std::collections::HashMap")
	assert.Contains(t, targets, "serde")
}

func TestRustParserCallSites(t *testing.T) {
	content := `fn helper(v: i32) -> i32 {
    v
}

fn caller() -> i32 {
    let x = helper(1);
    x.to_string().len() as i32
}
`
	result := parseRust(t, content)
	calls := callSitesOf(result)
	require.NotEmpty(t, calls)

	byExpr := map[string]model.CallSiteReference{}
	for _, c := range calls {
		byExpr[c.CalledExpr] = c
	}
	require.Contains(t, byExpr, "helper")
	assert.Equal(t, 1, byExpr["helper"].ArgumentCount)
	assert.Equal(t, "1", byExpr["helper"].RawArgs)
	assert.True(t, strings.HasPrefix(byExpr["helper"].CallerTempID, "caller()@"))
}

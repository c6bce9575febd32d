package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	repoSlug = "local/proj"
	fileSlug = "local/proj:src/a.cpp"
)

func newTestEngine(store graph.Store) *Engine {
	return NewEngine(Options{Store: store})
}

func TestRepairWorkerResolvesLocalCall(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	entities := []model.CodeEntity{
		{SlugID: "Ns::helper()@3", Type: "FunctionDefinition", FileSlug: fileSlug},
		{SlugID: "Ns::caller()@10", Type: "FunctionDefinition", FileSlug: fileSlug},
	}
	refs := []model.CallSiteReference{{
		CallerTempID:  "Ns::caller()@10",
		CalledExpr:    "helper",
		Line0:         12,
		FileSlug:      fileSlug,
		RawArgs:       "",
		ArgumentCount: 0,
	}}

	engine.RunRepairWorker(ctx, repoSlug, entities, refs)

	edges := store.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, model.RelCalls, edges[0].Type)
	assert.Equal(t, model.PersistentEntitySlug(fileSlug, "Ns::caller()@10"), edges[0].SourceSlug)
	assert.Equal(t, model.PersistentEntitySlug(fileSlug, "Ns::helper()@3"), edges[0].TargetSlug)
	assert.Equal(t, 12, edges[0].Properties["line"])

	pending, err := store.FindNodes(ctx, map[string]any{"type": model.TypePendingLink}, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRepairWorkerResolvesThroughNamespaceDirective(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	entities := []model.CodeEntity{
		{SlugID: "util::format(int)@4", Type: "FunctionDefinition", FileSlug: fileSlug},
		{SlugID: "main()@20", Type: "FunctionDefinition", FileSlug: fileSlug},
		{SlugID: "using_namespace_directive_referencing::util@1", Type: "UsingDirective", FileSlug: fileSlug},
	}
	refs := []model.CallSiteReference{{
		CallerTempID:  "main()@20",
		CalledExpr:    "util::format",
		Line0:         22,
		FileSlug:      fileSlug,
		ArgumentCount: 1,
	}}

	engine.RunRepairWorker(ctx, repoSlug, entities, refs)
	require.Len(t, store.Edges(), 1)
}

func TestRepairWorkerCreatesPendingLinkOnMiss(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	entities := []model.CodeEntity{
		{SlugID: "main()@20", Type: "FunctionDefinition", FileSlug: fileSlug},
	}
	refs := []model.CallSiteReference{{
		CallerTempID:  "main()@20",
		CalledExpr:    "external_fn",
		Line0:         21,
		FileSlug:      fileSlug,
		RawArgs:       "1,2",
		ArgumentCount: 2,
	}}

	engine.RunRepairWorker(ctx, repoSlug, entities, refs)

	assert.Empty(t, store.Edges())
	pending, err := store.FindNodes(ctx, map[string]any{
		"type":   model.TypePendingLink,
		"status": string(model.StatusPendingResolution),
	}, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "external_fn", pending[0].Attributes["target_expression"])
	assert.Equal(t, repoSlug, pending[0].Attributes["repo_id_str"])
	assert.Equal(t, fileSlug, pending[0].Attributes["source_file_id"])
}

func TestPendingLinkSlugStableAcrossRuns(t *testing.T) {
	ref := model.CallSiteReference{
		CallerTempID: "main()@20",
		CalledExpr:   "external_fn",
		Line0:        21,
		FileSlug:     fileSlug,
	}
	assert.Equal(t, PendingLinkSlug(ref), PendingLinkSlug(ref))

	other := ref
	other.Line0 = 22
	assert.NotEqual(t, PendingLinkSlug(ref), PendingLinkSlug(other))
}

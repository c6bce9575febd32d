package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

func TestScoreCandidatesRanking(t *testing.T) {
	vocab := []string{
		"Ns::helper()",
		"Other::helper()",
		"helper_unrelated()",
	}
	scored := scoreCandidates(vocab, "helper", "Ns")
	require.Len(t, scored, 2)
	// Ns::helper wins by scope proximity; ties would break lexicographically.
	assert.Equal(t, "Ns::helper()", scored[0].fqn)
	assert.Equal(t, scorePrefix+scoreProximity, scored[0].score)
	assert.Equal(t, "Other::helper()", scored[1].fqn)
	assert.Equal(t, scorePrefix, scored[1].score)
}

func TestScoreCandidatesExactBeatsPrefix(t *testing.T) {
	vocab := []string{"A::f()", "f()"}
	scored := scoreCandidates(vocab, "f", "")
	require.Len(t, scored, 2)
	assert.Equal(t, "f()", scored[0].fqn)
	assert.Equal(t, scoreExact, scored[0].score)
}

func TestScoreCandidatesLexicographicTieBreak(t *testing.T) {
	vocab := []string{"B::f()", "A::f()"}
	scored := scoreCandidates(vocab, "f", "")
	require.Len(t, scored, 2)
	assert.Equal(t, "A::f()", scored[0].fqn)
}

func TestCallerScopeOf(t *testing.T) {
	assert.Equal(t, "A::B", callerScopeOf("file|A::B::f(int)@12"))
	assert.Equal(t, "Cls", callerScopeOf("file|Cls.method()@3"))
	assert.Equal(t, "", callerScopeOf("file|standalone()@1"))
}

func seedEntity(t *testing.T, store *graph.MemoryStore, fqn string) {
	t.Helper()
	slug := "local/proj:src/lib.cpp|" + fqn + "@1"
	err := store.AddNodes(context.Background(), []graph.Node{{
		UUID:   model.UUIDForSlug(slug),
		SlugID: slug,
		Type:   "FunctionDefinition",
		Attributes: map[string]any{
			"slug_id":     slug,
			"type":        "FunctionDefinition",
			"fqn":         fqn,
			"repo_id_str": repoSlug,
		},
	}})
	require.NoError(t, err)
}

func seedPendingLink(t *testing.T, store *graph.MemoryStore, expr string, status model.LinkStatus) graph.Node {
	t.Helper()
	ref := model.CallSiteReference{
		CallerTempID: "Ns::caller()@10",
		CalledExpr:   expr,
		Line0:        12,
		FileSlug:     fileSlug,
	}
	node := pendingLinkNode(repoSlug, ref)
	node.Attributes["status"] = string(status)
	require.NoError(t, store.AddNodes(context.Background(), []graph.Node{node}))
	return node
}

func TestRunTier2DominantCandidateResolves(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	seedEntity(t, store, "Ns::helper()")
	link := seedPendingLink(t, store, "helper", model.StatusReadyForHeuristics)

	require.NoError(t, engine.RunTier2(ctx, repoSlug))

	got, ok := store.NodeBySlug(link.SlugID)
	require.True(t, ok)
	assert.Equal(t, string(model.StatusAwaitingTarget), got.Attributes["status"])
	assert.Equal(t, "Ns::helper()", got.Attributes["awaits_fqn"])
}

func TestRunTier2AmbiguousEscalatesToLLM(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	seedEntity(t, store, "A::helper()")
	seedEntity(t, store, "B::helper()")
	link := seedPendingLink(t, store, "helper", model.StatusReadyForHeuristics)

	require.NoError(t, engine.RunTier2(ctx, repoSlug))

	got, ok := store.NodeBySlug(link.SlugID)
	require.True(t, ok)
	assert.Equal(t, string(model.StatusReadyForLLM), got.Attributes["status"])
	assert.ElementsMatch(t, []string{"A::helper()", "B::helper()"}, linkCandidates(got))
}

func TestPromotePending(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	link := seedPendingLink(t, store, "something", model.StatusPendingResolution)
	count, err := engine.PromotePending(ctx, repoSlug)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, ok := store.NodeBySlug(link.SlugID)
	require.True(t, ok)
	assert.Equal(t, string(model.StatusReadyForHeuristics), got.Attributes["status"])
}

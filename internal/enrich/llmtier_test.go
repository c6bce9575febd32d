package enrich

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// fakeCompleter scripts the LLM port for tests.
type fakeCompleter struct {
	response BatchResponse
	err      error
	prompts  []string
}

func (f *fakeCompleter) Enabled() bool { return true }

func (f *fakeCompleter) StructuredComplete(_ context.Context, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	raw, _ := json.Marshal(f.response)
	return json.Unmarshal(raw, out)
}

func seedSourceFile(t *testing.T, store *graph.MemoryStore, dir string) {
	t.Helper()
	path := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(path, []byte("void caller() { external_fn(); }\n"), 0o644))
	require.NoError(t, store.AddNodes(context.Background(), []graph.Node{{
		UUID:   model.UUIDForSlug(fileSlug),
		SlugID: fileSlug,
		Type:   model.TypeSourceFile,
		Attributes: map[string]any{
			"slug_id":     fileSlug,
			"type":        model.TypeSourceFile,
			"file_path":   path,
			"repo_id_str": repoSlug,
		},
	}}))
}

func strPtr(s string) *string { return &s }

func TestRunTier3ResolvesViaLLM(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	seedSourceFile(t, store, t.TempDir())
	link := seedPendingLink(t, store, "external_fn", model.StatusReadyForLLM)

	fake := &fakeCompleter{}
	fake.response.Resolutions = []struct {
		PendingLinkID        string  `json:"pending_link_id"`
		ResolvedCanonicalFQN *string `json:"resolved_canonical_fqn"`
	}{
		{PendingLinkID: link.SlugID, ResolvedCanonicalFQN: strPtr("lib::external_fn()")},
	}

	engine := NewEngine(Options{Store: store, LLM: fake})
	require.NoError(t, engine.RunTier3(ctx, repoSlug))

	got, ok := store.NodeBySlug(link.SlugID)
	require.True(t, ok)
	assert.Equal(t, string(model.StatusAwaitingTarget), got.Attributes["status"])
	assert.Equal(t, "lib::external_fn()", got.Attributes["awaits_fqn"])
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "external_fn")
}

func TestRunTier3NullResolutionIsUnresolvable(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	seedSourceFile(t, store, t.TempDir())
	link := seedPendingLink(t, store, "external_fn", model.StatusReadyForLLM)

	fake := &fakeCompleter{}
	fake.response.Resolutions = []struct {
		PendingLinkID        string  `json:"pending_link_id"`
		ResolvedCanonicalFQN *string `json:"resolved_canonical_fqn"`
	}{
		{PendingLinkID: link.SlugID, ResolvedCanonicalFQN: nil},
	}

	engine := NewEngine(Options{Store: store, LLM: fake})
	require.NoError(t, engine.RunTier3(ctx, repoSlug))

	got, _ := store.NodeBySlug(link.SlugID)
	assert.Equal(t, string(model.StatusUnresolvable), got.Attributes["status"])
}

func TestRunTier3BatchErrorMarksRemainingUnresolvable(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	seedSourceFile(t, store, t.TempDir())
	link := seedPendingLink(t, store, "external_fn", model.StatusReadyForLLM)

	fake := &fakeCompleter{err: errors.New(errors.KindLLM, "timeout")}
	engine := NewEngine(Options{Store: store, LLM: fake})
	require.NoError(t, engine.RunTier3(ctx, repoSlug))

	got, _ := store.NodeBySlug(link.SlugID)
	assert.Equal(t, string(model.StatusUnresolvable), got.Attributes["status"])
	reason, _ := got.Attributes["reason"].(string)
	assert.Contains(t, reason, "batch processing failed")
}

func TestRunTier3CacheHitSkipsLLM(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	seedSourceFile(t, store, t.TempDir())
	link := seedPendingLink(t, store, "external_fn", model.StatusReadyForLLM)

	cache, err := OpenResolutionCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()
	cache.Put(link.SlugID, "lib::external_fn()")

	fake := &fakeCompleter{}
	engine := NewEngine(Options{Store: store, LLM: fake, Cache: cache})
	require.NoError(t, engine.RunTier3(ctx, repoSlug))

	got, _ := store.NodeBySlug(link.SlugID)
	assert.Equal(t, string(model.StatusAwaitingTarget), got.Attributes["status"])
	assert.Empty(t, fake.prompts, "cache hit must not call the llm")
}

func TestResolutionCacheWriteOnce(t *testing.T) {
	cache, err := OpenResolutionCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	cache.Put("key", "first")
	cache.Put("key", "second")
	got, ok := cache.Get("key")
	require.True(t, ok)
	assert.Equal(t, "first", got)
}

func TestMaterializeAwaitingEmitsCallsEdge(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	seedEntity(t, store, "lib::external_fn()")
	link := seedPendingLink(t, store, "external_fn", model.StatusAwaitingTarget)
	require.NoError(t, store.UpdateNodeAttributes(ctx, link.UUID, map[string]any{
		"awaits_fqn": "lib::external_fn()",
	}))

	require.NoError(t, engine.MaterializeAwaiting(ctx, repoSlug))

	edges := store.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, model.RelCalls, edges[0].Type)
	assert.Equal(t, model.PersistentEntitySlug(fileSlug, "Ns::caller()@10"), edges[0].SourceSlug)

	_, stillThere := store.NodeBySlug(link.SlugID)
	assert.False(t, stillThere, "materialized pending link must be deleted")
}

func TestMaterializeAwaitingLeavesUnmatchedLinks(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := newTestEngine(store)

	link := seedPendingLink(t, store, "external_fn", model.StatusAwaitingTarget)
	require.NoError(t, store.UpdateNodeAttributes(ctx, link.UUID, map[string]any{
		"awaits_fqn": "not::defined::anywhere()",
	}))

	require.NoError(t, engine.MaterializeAwaiting(ctx, repoSlug))
	assert.Empty(t, store.Edges())
	got, ok := store.NodeBySlug(link.SlugID)
	require.True(t, ok)
	assert.Equal(t, string(model.StatusAwaitingTarget), got.Attributes["status"])
}

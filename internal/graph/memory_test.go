package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestMemoryStoreNodesAndFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	nodes, edges := Adapt(sampleBatch())
	require.NoError(t, store.AddNodes(ctx, nodes))
	require.NoError(t, store.AddEdges(ctx, edges))
	assert.Equal(t, len(nodes), store.NodeCount())

	found, err := store.FindNodes(ctx, map[string]any{"type": "FunctionDefinition"}, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "f()", found[0].Attributes["fqn"])

	found, err = store.FindNodes(ctx, map[string]any{
		"type":        "FunctionDefinition",
		"repo_id_str": "local/proj",
	}, 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = store.FindNodes(ctx, map[string]any{"type": "Nothing"}, 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	nodes, edges := Adapt(sampleBatch())
	require.NoError(t, store.AddNodes(ctx, nodes))
	require.NoError(t, store.AddEdges(ctx, edges))
	require.NoError(t, store.AddNodes(ctx, nodes))
	require.NoError(t, store.AddEdges(ctx, edges))

	assert.Equal(t, len(nodes), store.NodeCount())
	assert.Len(t, store.Edges(), len(edges))
}

func TestMemoryStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	nodes, _ := Adapt(sampleBatch())
	require.NoError(t, store.AddNodes(ctx, nodes))

	target := nodes[0]
	require.NoError(t, store.UpdateNodeAttributes(ctx, target.UUID, map[string]any{"status": "x"}))
	got, ok := store.NodeBySlug(target.SlugID)
	require.True(t, ok)
	assert.Equal(t, "x", got.Attributes["status"])

	count, err := store.DeleteNodes(ctx, map[string]any{"slug_id": target.SlugID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, ok = store.NodeBySlug(target.SlugID)
	assert.False(t, ok)
}

func TestMemoryStoreHeartbeat(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	hb, err := store.GetHeartbeat(ctx, "local/proj")
	require.NoError(t, err)
	assert.Nil(t, hb)

	require.NoError(t, store.UpdateHeartbeat(ctx, "local/proj", model.HeartbeatActive, ""))
	hb, err = store.GetHeartbeat(ctx, "local/proj")
	require.NoError(t, err)
	require.NotNil(t, hb)
	assert.Equal(t, model.HeartbeatActive, hb.Status)
	assert.False(t, hb.LastActivity.IsZero())

	require.NoError(t, store.UpdateHeartbeat(ctx, "local/proj", model.HeartbeatFailed, "boom"))
	hb, err = store.GetHeartbeat(ctx, "local/proj")
	require.NoError(t, err)
	assert.Equal(t, model.HeartbeatFailed, hb.Status)
	assert.Equal(t, "boom", hb.Error)
}

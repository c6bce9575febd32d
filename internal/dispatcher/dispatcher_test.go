package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/enrich"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

const repoSlug = "local/proj"

// countingStore wraps MemoryStore to observe heartbeat transitions.
type countingStore struct {
	*graph.MemoryStore
	mu         sync.Mutex
	statusLog  []string
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: graph.NewMemoryStore()}
}

func (s *countingStore) UpdateHeartbeat(ctx context.Context, repo, status, errMsg string) error {
	s.mu.Lock()
	s.statusLog = append(s.statusLog, status)
	s.mu.Unlock()
	return s.MemoryStore.UpdateHeartbeat(ctx, repo, status, errMsg)
}

func (s *countingStore) count(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.statusLog {
		if entry == status {
			n++
		}
	}
	return n
}

var _ graph.Store = (*countingStore)(nil)

func newDispatcher(store graph.Store, quiescence time.Duration) *Dispatcher {
	engine := enrich.NewEngine(enrich.Options{Store: store})
	return New(store, engine, quiescence)
}

func TestActivityResetsQuiescenceTimer(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	d := newDispatcher(store, 100*time.Millisecond)

	// Two activities 50ms apart: the first watcher is cancelled, so no
	// cycle may run before the second timer expires.
	d.NotifyIngestionActivity(ctx, repoSlug, nil, nil)
	time.Sleep(50 * time.Millisecond)
	d.NotifyIngestionActivity(ctx, repoSlug, nil, nil)

	time.Sleep(50 * time.Millisecond) // t=100ms since first notify
	assert.Equal(t, 0, store.count(model.HeartbeatEnhancing), "no cycle before T_Q elapses untouched")

	time.Sleep(100 * time.Millisecond) // t=200ms: second timer has fired
	d.Wait()
	assert.Equal(t, 1, store.count(model.HeartbeatEnhancing), "exactly one cycle after quiescence")
}

func TestAtMostOneWatcherPerRepository(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	d := newDispatcher(store, time.Minute)

	for i := 0; i < 5; i++ {
		d.NotifyIngestionActivity(ctx, repoSlug, nil, nil)
	}
	assert.Equal(t, 1, d.ActiveWatchers())

	d.NotifyIngestionActivity(ctx, "local/other", nil, nil)
	assert.Equal(t, 2, d.ActiveWatchers())

	d.CancelWatch(repoSlug)
	d.CancelWatch("local/other")
	d.Wait()
	assert.Equal(t, 0, d.ActiveWatchers())
}

func TestNotifyRunsRepairWorkerImmediately(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	d := newDispatcher(store, time.Minute)
	defer func() {
		d.CancelWatch(repoSlug)
		d.Wait()
	}()

	fileSlug := repoSlug + ":src/a.cpp"
	entities := []model.CodeEntity{
		{SlugID: "helper()@1", Type: "FunctionDefinition", FileSlug: fileSlug},
		{SlugID: "caller()@5", Type: "FunctionDefinition", FileSlug: fileSlug},
	}
	refs := []model.CallSiteReference{
		{CallerTempID: "caller()@5", CalledExpr: "helper", Line0: 6, FileSlug: fileSlug},
		{CallerTempID: "caller()@5", CalledExpr: "missing_fn", Line0: 7, FileSlug: fileSlug},
	}

	d.NotifyIngestionActivity(ctx, repoSlug, entities, refs)

	// Repair worker runs synchronously: one resolved CALLS edge, one
	// pending link, heartbeat refreshed.
	assert.Len(t, store.Edges(), 1)
	pending, err := store.FindNodes(ctx, map[string]any{
		"type":   model.TypePendingLink,
		"status": string(model.StatusPendingResolution),
	}, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	hb, err := store.GetHeartbeat(ctx, repoSlug)
	require.NoError(t, err)
	require.NotNil(t, hb)
	assert.Equal(t, model.HeartbeatActive, hb.Status)
}

func TestFullCycleDrivesPendingLinkToTerminalStatus(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	d := newDispatcher(store, 50*time.Millisecond)

	fileSlug := repoSlug + ":src/a.cpp"
	refs := []model.CallSiteReference{
		{CallerTempID: "caller()@5", CalledExpr: "missing_fn", Line0: 7, FileSlug: fileSlug},
	}
	d.NotifyIngestionActivity(ctx, repoSlug, nil, refs)

	time.Sleep(150 * time.Millisecond)
	d.Wait()

	// With no vocabulary match and no LLM configured the link must have
	// moved monotonically to a post-heuristics status.
	links, err := store.FindNodes(ctx, map[string]any{"type": model.TypePendingLink}, 0)
	require.NoError(t, err)
	require.Len(t, links, 1)
	status, _ := links[0].Attributes["status"].(string)
	assert.Contains(t, []string{
		string(model.StatusReadyForLLM),
		string(model.StatusUnresolvable),
	}, status)

	// The cycle completed: heartbeat cycled through enhancing back to active.
	assert.GreaterOrEqual(t, store.count(model.HeartbeatEnhancing), 1)
	hb, err := store.GetHeartbeat(ctx, repoSlug)
	require.NoError(t, err)
	assert.Equal(t, model.HeartbeatActive, hb.Status)
}

package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codegraphhq/codegraph/internal/model"
)

// MemoryStore is a mutex-guarded in-process Store, used by tests and the
// "memory" backend of local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]Node
	edges map[string]Edge // keyed by source|TYPE|target
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[uuid.UUID]Node),
		edges: make(map[string]Edge),
	}
}

func edgeKey(e Edge) string {
	return e.SourceUUID.String() + "|" + e.Type + "|" + e.TargetUUID.String()
}

func (s *MemoryStore) AddNodes(_ context.Context, nodes []Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		copied := n
		copied.Attributes = cloneAttrs(n.Attributes)
		s.nodes[n.UUID] = copied
	}
	return nil
}

func (s *MemoryStore) AddEdges(_ context.Context, edges []Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range edges {
		s.edges[edgeKey(e)] = e
	}
	return nil
}

func matches(n Node, filter map[string]any) bool {
	for key, want := range filter {
		var got any
		switch key {
		case "type":
			got = n.Type
		case "slug_id":
			got = n.SlugID
		default:
			got = n.Attributes[key]
		}
		if got != want {
			return false
		}
	}
	return true
}

func (s *MemoryStore) FindNodes(_ context.Context, filter map[string]any, limit int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Node
	for _, n := range s.nodes {
		if matches(n, filter) {
			out = append(out, n)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateNodeAttributes(_ context.Context, id uuid.UUID, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	if n.Attributes == nil {
		n.Attributes = map[string]any{}
	}
	for k, v := range patch {
		n.Attributes[k] = v
	}
	s.nodes[id] = n
	return nil
}

func (s *MemoryStore) DeleteNodes(_ context.Context, filter map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.nodes {
		if matches(n, filter) {
			delete(s.nodes, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UpdateHeartbeat(ctx context.Context, repoSlug, status, errMsg string) error {
	slug := model.HeartbeatSlug(repoSlug)
	node := Node{
		UUID:   model.UUIDForSlug(slug),
		SlugID: slug,
		Type:   model.TypeIngestionHeartbeat,
		Attributes: map[string]any{
			"slug_id":                 slug,
			"type":                    model.TypeIngestionHeartbeat,
			"repo_id_str":             repoSlug,
			"status":                  status,
			"error":                   errMsg,
			"last_activity_timestamp": time.Now().UTC(),
		},
	}
	return s.AddNodes(ctx, []Node{node})
}

func (s *MemoryStore) GetHeartbeat(_ context.Context, repoSlug string) (*Heartbeat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[model.UUIDForSlug(model.HeartbeatSlug(repoSlug))]
	if !ok {
		return nil, nil
	}
	hb := &Heartbeat{RepoSlug: repoSlug}
	if v, ok := n.Attributes["status"].(string); ok {
		hb.Status = v
	}
	if v, ok := n.Attributes["error"].(string); ok {
		hb.Error = v
	}
	if v, ok := n.Attributes["last_activity_timestamp"].(time.Time); ok {
		hb.LastActivity = v
	}
	return hb, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// NodeCount returns the number of stored nodes.
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Edges returns a snapshot of all stored edges.
func (s *MemoryStore) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

// NodeBySlug returns the stored node for a slug, if present.
func (s *MemoryStore) NodeBySlug(slug string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[model.UUIDForSlug(slug)]
	return n, ok
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

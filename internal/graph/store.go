// Package graph provides the property-graph data plane: the adapter that
// turns parser output into nodes and edges, the abstract store port, and
// its Neo4j and in-memory implementations.
package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Node is the uniform persisted shape of every graph node. The type tag is
// drawn from a closed enumeration; per-type attributes live in the map.
type Node struct {
	UUID       uuid.UUID
	SlugID     string
	Type       string
	Attributes map[string]any
}

// indexedFields lists, per node type, the attributes the store should index
// for filtered lookups.
var indexedFields = map[string][]string{
	model.TypeRepository:         {"slug_id"},
	model.TypeSourceFile:         {"slug_id", "repo_id_str", "file_type"},
	model.TypeTextChunk:          {"slug_id", "source_file_id"},
	model.TypePendingLink:        {"slug_id", "status", "repo_id_str", "source_file_id"},
	model.TypeIngestionHeartbeat: {"slug_id"},
	model.TypeResolutionCache:    {"slug_id"},
}

// IndexedFields returns the indexed attribute names for a node type.
// CodeEntity types (FunctionDefinition, ...) share one index set.
func IndexedFields(nodeType string) []string {
	if fields, ok := indexedFields[nodeType]; ok {
		return fields
	}
	return []string{"slug_id", "fqn", "repo_id_str", "source_file_id"}
}

// Edge is one directed relationship in wire form: endpoint UUIDs, the
// uppercase type label, and an optional property map. Slugs are carried for
// logging and idempotence keys.
type Edge struct {
	SourceUUID uuid.UUID
	TargetUUID uuid.UUID
	SourceSlug string
	TargetSlug string
	Type       string
	Properties map[string]any
}

// Heartbeat is the read model of an IngestionHeartbeat node.
type Heartbeat struct {
	RepoSlug     string
	Status       string
	LastActivity time.Time
	Error        string
}

// Store is the abstract graph backend used by the pipeline. Implementations
// must be safe for concurrent use; ordering across independent calls is not
// guaranteed.
type Store interface {
	// AddNodes upserts nodes, keyed by UUID.
	AddNodes(ctx context.Context, nodes []Node) error
	// AddEdges upserts edges, keyed by (source, target, type).
	AddEdges(ctx context.Context, edges []Edge) error
	// FindNodes returns nodes matching an equality predicate over
	// attributes (including "type" and "slug_id"). limit <= 0 means no limit.
	FindNodes(ctx context.Context, filter map[string]any, limit int) ([]Node, error)
	// UpdateNodeAttributes applies a partial attribute patch to one node.
	UpdateNodeAttributes(ctx context.Context, id uuid.UUID, patch map[string]any) error
	// DeleteNodes removes all nodes matching the filter and returns the count.
	DeleteNodes(ctx context.Context, filter map[string]any) (int, error)
	// UpdateHeartbeat upserts the repository's IngestionHeartbeat.
	UpdateHeartbeat(ctx context.Context, repoSlug, status, errMsg string) error
	// GetHeartbeat reads a repository's heartbeat; nil when absent.
	GetHeartbeat(ctx context.Context, repoSlug string) (*Heartbeat, error)
	// Close releases backend resources and waits for outstanding writes.
	Close(ctx context.Context) error
}

package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Neo4jStore implements Store against Neo4j with parameterized Cypher and
// UNWIND batch upserts. Transient write failures are retried with
// exponential backoff up to a bounded attempt count.
type Neo4jStore struct {
	driver     neo4j.DriverWithContext
	database   string
	batchSize  int
	maxRetries int
	retryBase  time.Duration
}

// Neo4jOptions configures a Neo4jStore.
type Neo4jOptions struct {
	URI        string
	User       string
	Password   string
	Database   string
	BatchSize  int
	MaxRetries int
	RetryBase  time.Duration
}

// NewNeo4jStore connects and verifies connectivity.
func NewNeo4jStore(ctx context.Context, opts Neo4jOptions) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.User, opts.Password, ""))
	if err != nil {
		return nil, errors.StoreError(err, "failed to create neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.StoreError(err, "failed to connect to neo4j at %s", opts.URI)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	return &Neo4jStore{
		driver:     driver,
		database:   opts.Database,
		batchSize:  opts.BatchSize,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBase,
	}, nil
}

// labelFor sanitizes a type tag into a Cypher label.
func labelFor(nodeType string) string {
	var b strings.Builder
	for _, c := range nodeType {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Node"
	}
	return b.String()
}

// relTypeFor sanitizes an edge type into a Cypher relationship type.
func relTypeFor(edgeType string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(edgeType) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}

// withRetry runs fn with exponential backoff. Exhaustion returns the last
// error wrapped as a store error.
func (s *Neo4jStore) withRetry(ctx context.Context, op string, fn func() error) error {
	log := logging.Component("neo4j")
	var lastErr error
	delay := s.retryBase
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < s.maxRetries {
			log.Warn("store operation failed, retrying", "op", op, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.StoreError(ctx.Err(), "%s cancelled", op)
			}
			delay *= 2
		}
	}
	return errors.StoreError(lastErr, "%s failed after %d attempts", op, s.maxRetries)
}

func normalizeProps(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch t := v.(type) {
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339Nano)
		case []string:
			vals := make([]any, len(t))
			for i, s := range t {
				vals[i] = s
			}
			out[k] = vals
		default:
			out[k] = v
		}
	}
	return out
}

// AddNodes upserts nodes in UNWIND batches grouped by label.
func (s *Neo4jStore) AddNodes(ctx context.Context, nodes []Node) error {
	if len(nodes) == 0 {
		return nil
	}
	byLabel := map[string][]map[string]any{}
	for _, n := range nodes {
		props := normalizeProps(n.Attributes)
		props["uuid"] = n.UUID.String()
		props["slug_id"] = n.SlugID
		props["type"] = n.Type
		label := labelFor(n.Type)
		byLabel[label] = append(byLabel[label], map[string]any{"props": props, "uuid": n.UUID.String()})
	}

	for label, rows := range byLabel {
		cypher := fmt.Sprintf(`UNWIND $rows AS row
MERGE (n:%s {uuid: row.uuid})
SET n += row.props`, label)
		for start := 0; start < len(rows); start += s.batchSize {
			end := start + s.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]
			err := s.withRetry(ctx, "add_nodes", func() error {
				_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
					map[string]any{"rows": batch},
					neo4j.EagerResultTransformer,
					neo4j.ExecuteQueryWithDatabase(s.database))
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// AddEdges upserts edges in UNWIND batches grouped by relationship type.
func (s *Neo4jStore) AddEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	byType := map[string][]map[string]any{}
	for _, e := range edges {
		byType[relTypeFor(e.Type)] = append(byType[relTypeFor(e.Type)], map[string]any{
			"source": e.SourceUUID.String(),
			"target": e.TargetUUID.String(),
			"props":  normalizeProps(e.Properties),
		})
	}

	for relType, rows := range byType {
		cypher := fmt.Sprintf(`UNWIND $rows AS row
MATCH (a {uuid: row.source})
MATCH (b {uuid: row.target})
MERGE (a)-[r:%s]->(b)
SET r += row.props`, relType)
		for start := 0; start < len(rows); start += s.batchSize {
			end := start + s.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]
			err := s.withRetry(ctx, "add_edges", func() error {
				_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
					map[string]any{"rows": batch},
					neo4j.EagerResultTransformer,
					neo4j.ExecuteQueryWithDatabase(s.database))
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func filterClause(filter map[string]any) (string, map[string]any) {
	var clauses []string
	params := map[string]any{}
	i := 0
	for key, value := range filter {
		param := fmt.Sprintf("f%d", i)
		clauses = append(clauses, fmt.Sprintf("n.`%s` = $%s", key, param))
		params[param] = value
		i++
	}
	if len(clauses) == 0 {
		return "", params
	}
	return "WHERE " + strings.Join(clauses, " AND "), params
}

func (s *Neo4jStore) FindNodes(ctx context.Context, filter map[string]any, limit int) ([]Node, error) {
	where, params := filterClause(filter)
	cypher := fmt.Sprintf("MATCH (n) %s RETURN n", where)
	if limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", limit)
	}

	var out []Node
	err := s.withRetry(ctx, "find_nodes", func() error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
			neo4j.ExecuteQueryWithReadersRouting())
		if err != nil {
			return err
		}
		out = out[:0]
		for _, record := range result.Records {
			raw, ok := record.Get("n")
			if !ok {
				continue
			}
			dbNode, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			out = append(out, nodeFromProps(dbNode.Props))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nodeFromProps(props map[string]any) Node {
	n := Node{Attributes: map[string]any{}}
	for k, v := range props {
		switch k {
		case "uuid":
			if s, ok := v.(string); ok {
				if id, err := uuid.Parse(s); err == nil {
					n.UUID = id
				}
			}
		case "slug_id":
			if s, ok := v.(string); ok {
				n.SlugID = s
			}
			n.Attributes[k] = v
		case "type":
			if s, ok := v.(string); ok {
				n.Type = s
			}
			n.Attributes[k] = v
		default:
			n.Attributes[k] = v
		}
	}
	return n
}

func (s *Neo4jStore) UpdateNodeAttributes(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	return s.withRetry(ctx, "update_node", func() error {
		_, err := neo4j.ExecuteQuery(ctx, s.driver,
			"MATCH (n {uuid: $uuid}) SET n += $patch",
			map[string]any{"uuid": id.String(), "patch": normalizeProps(patch)},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		return err
	})
}

func (s *Neo4jStore) DeleteNodes(ctx context.Context, filter map[string]any) (int, error) {
	where, params := filterClause(filter)
	cypher := fmt.Sprintf("MATCH (n) %s DETACH DELETE n RETURN count(n) AS deleted", where)
	count := 0
	err := s.withRetry(ctx, "delete_nodes", func() error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return err
		}
		if len(result.Records) > 0 {
			if v, ok := result.Records[0].Get("deleted"); ok {
				if c, ok := v.(int64); ok {
					count = int(c)
				}
			}
		}
		return nil
	})
	return count, err
}

func (s *Neo4jStore) UpdateHeartbeat(ctx context.Context, repoSlug, status, errMsg string) error {
	slug := model.HeartbeatSlug(repoSlug)
	node := Node{
		UUID:   model.UUIDForSlug(slug),
		SlugID: slug,
		Type:   model.TypeIngestionHeartbeat,
		Attributes: map[string]any{
			"repo_id_str":             repoSlug,
			"status":                  status,
			"error":                   errMsg,
			"last_activity_timestamp": time.Now().UTC(),
		},
	}
	return s.AddNodes(ctx, []Node{node})
}

func (s *Neo4jStore) GetHeartbeat(ctx context.Context, repoSlug string) (*Heartbeat, error) {
	nodes, err := s.FindNodes(ctx, map[string]any{"slug_id": model.HeartbeatSlug(repoSlug)}, 1)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	hb := &Heartbeat{RepoSlug: repoSlug}
	if v, ok := nodes[0].Attributes["status"].(string); ok {
		hb.Status = v
	}
	if v, ok := nodes[0].Attributes["error"].(string); ok {
		hb.Error = v
	}
	if v, ok := nodes[0].Attributes["last_activity_timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			hb.LastActivity = t
		}
	}
	return hb, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Package enrich implements the three-tier link resolution engine: the
// exact-match repair worker, the heuristic resolver, and the LLM-assisted
// resolver with its resolution cache, plus the CALLS materialization sweep.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// PendingLinkSlug derives the deterministic slug of the PendingLink for a
// call-site reference. Stable across runs so re-ingestion upserts rather
// than duplicates.
func PendingLinkSlug(ref model.CallSiteReference) string {
	h := xxhash.New()
	_, _ = h.WriteString(ref.FileSlug)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(ref.CallerTempID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(ref.CalledExpr)
	_, _ = fmt.Fprintf(h, "|%d", ref.Line0)
	return fmt.Sprintf("pending-link://%016x", h.Sum64())
}

// pendingLinkNode builds the graph node for an unresolved reference.
func pendingLinkNode(repoSlug string, ref model.CallSiteReference) graph.Node {
	slug := PendingLinkSlug(ref)
	return graph.Node{
		UUID:   model.UUIDForSlug(slug),
		SlugID: slug,
		Type:   model.TypePendingLink,
		Attributes: map[string]any{
			"slug_id":           slug,
			"type":              model.TypePendingLink,
			"status":            string(model.StatusPendingResolution),
			"repo_id_str":       repoSlug,
			"source_entity_id":  model.PersistentEntitySlug(ref.FileSlug, ref.CallerTempID),
			"source_file_id":    ref.FileSlug,
			"target_expression": ref.CalledExpr,
			"line":              ref.Line0,
			"raw_args":          ref.RawArgs,
			"arg_count":         ref.ArgumentCount,
		},
	}
}

// linkStatus reads the status attribute of a PendingLink node.
func linkStatus(n graph.Node) model.LinkStatus {
	if s, ok := n.Attributes["status"].(string); ok {
		return model.LinkStatus(s)
	}
	return ""
}

func linkString(n graph.Node, key string) string {
	if s, ok := n.Attributes[key].(string); ok {
		return s
	}
	return ""
}

func linkInt(n graph.Node, key string) int {
	switch v := n.Attributes[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func linkCandidates(n graph.Node) []string {
	switch v := n.Attributes["candidates"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// setLinkStatus transitions a PendingLink, merging extra attributes in the
// same patch. Transitions are monotone; callers only ever move forward
// along the status DAG.
func setLinkStatus(ctx context.Context, store graph.Store, n graph.Node, status model.LinkStatus, extra map[string]any) error {
	patch := map[string]any{"status": string(status)}
	for k, v := range extra {
		patch[k] = v
	}
	return store.UpdateNodeAttributes(ctx, n.UUID, patch)
}

// callsEdge builds the CALLS edge for a resolved reference.
func callsEdge(sourceSlug, targetSlug string, line, argCount int, rawArgs string) graph.Edge {
	return graph.Edge{
		SourceUUID: model.UUIDForSlug(sourceSlug),
		TargetUUID: model.UUIDForSlug(targetSlug),
		SourceSlug: sourceSlug,
		TargetSlug: targetSlug,
		Type:       model.RelCalls,
		Properties: map[string]any{
			"line":      line,
			"raw_args":  rawArgs,
			"arg_count": argCount,
		},
	}
}

// stripParams drops a trailing "(...)" parameter list from an FQN.
func stripParams(fqn string) string {
	if i := strings.Index(fqn, "("); i > 0 {
		return fqn[:i]
	}
	return fqn
}

// fqnMatchesExpr reports whether a definition FQN satisfies a called
// expression: exact (with or without parameters) or scope-suffix match.
func fqnMatchesExpr(fqn, expr string) bool {
	if fqn == expr {
		return true
	}
	bare := stripParams(fqn)
	if bare == expr {
		return true
	}
	return strings.HasSuffix(bare, "::"+expr) || strings.HasSuffix(bare, "."+expr)
}

package enrich

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// MaterializeAwaiting sweeps the repository's AWAITING_TARGET links: when a
// node with the awaited FQN now exists, the corresponding CALLS edge is
// written and the PendingLink is deleted. Links whose target has not
// appeared yet stay put for a later sweep.
func (e *Engine) MaterializeAwaiting(ctx context.Context, repoSlug string) error {
	log := e.log.With("sweep", "materialize", "repo", repoSlug)

	links, err := e.store.FindNodes(ctx, map[string]any{
		"type":        model.TypePendingLink,
		"status":      string(model.StatusAwaitingTarget),
		"repo_id_str": repoSlug,
	}, 0)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	materialized := 0
	for _, link := range links {
		awaits := linkString(link, "awaits_fqn")
		if awaits == "" {
			continue
		}
		targets, err := e.store.FindNodes(ctx, map[string]any{
			"repo_id_str": repoSlug,
			"fqn":         awaits,
		}, 1)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			continue
		}

		sourceSlug := linkString(link, "source_entity_id")
		edge := callsEdge(sourceSlug, targets[0].SlugID,
			linkInt(link, "line"), linkInt(link, "arg_count"), linkString(link, "raw_args"))
		if err := e.store.AddEdges(ctx, []graph.Edge{edge}); err != nil {
			return err
		}
		if _, err := e.store.DeleteNodes(ctx, map[string]any{"slug_id": link.SlugID}); err != nil {
			return err
		}
		materialized++
	}

	if materialized > 0 {
		log.Info("materialized CALLS edges", "count", materialized, "pending", len(links)-materialized)
	}
	return nil
}

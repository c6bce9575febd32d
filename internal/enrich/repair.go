package enrich

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// RunRepairWorker is tier 1: per-file exact-match resolution, run
// synchronously on every ingestion activity. It matches each call-site
// reference against the file's freshly created entities, its imports, and
// its namespace directives. Successful matches become CALLS edges;
// everything else becomes a PENDING_RESOLUTION PendingLink.
//
// Failures are logged per reference and never block ingestion.
func (e *Engine) RunRepairWorker(ctx context.Context, repoSlug string, entities []model.CodeEntity, refs []model.CallSiteReference) {
	if len(refs) == 0 {
		return
	}
	log := e.log.With("tier", 1, "repo", repoSlug)

	// Index the file-local definitions, imports, and directives.
	type localEntity struct {
		fqn            string
		persistentSlug string
	}
	var locals []localEntity
	var importFQNs []localEntity
	var namespaces []string

	for _, entity := range entities {
		fqn, _, ok := model.SplitTempEntitySlug(entity.SlugID)
		if !ok {
			fqn = entity.SlugID
		}
		persistent := model.PersistentEntitySlug(entity.FileSlug, entity.SlugID)
		switch entity.Type {
		case "ExternalReference":
			importFQNs = append(importFQNs, localEntity{fqn: fqn, persistentSlug: persistent})
		case "UsingDirective":
			const marker = "using_namespace_directive_referencing::"
			if len(fqn) > len(marker) && fqn[:len(marker)] == marker {
				namespaces = append(namespaces, fqn[len(marker):])
			}
		default:
			locals = append(locals, localEntity{fqn: fqn, persistentSlug: persistent})
		}
	}

	resolve := func(expr string) (string, bool) {
		for _, l := range locals {
			if fqnMatchesExpr(l.fqn, expr) {
				return l.persistentSlug, true
			}
		}
		for _, imp := range importFQNs {
			if fqnMatchesExpr(imp.fqn, expr) {
				return imp.persistentSlug, true
			}
		}
		for _, ns := range namespaces {
			qualified := ns + "::" + expr
			for _, l := range locals {
				if fqnMatchesExpr(l.fqn, qualified) {
					return l.persistentSlug, true
				}
			}
		}
		return "", false
	}

	var edges []graph.Edge
	var pending []graph.Node
	for _, ref := range refs {
		callerSlug := model.PersistentEntitySlug(ref.FileSlug, ref.CallerTempID)
		if targetSlug, ok := resolve(ref.CalledExpr); ok {
			edges = append(edges, callsEdge(callerSlug, targetSlug, ref.Line0, ref.ArgumentCount, ref.RawArgs))
		} else {
			pending = append(pending, pendingLinkNode(repoSlug, ref))
		}
	}

	if len(edges) > 0 {
		if err := e.store.AddEdges(ctx, edges); err != nil {
			log.Error("failed to write CALLS edges", "count", len(edges), "error", err)
		} else {
			log.Debug("resolved call sites locally", "edges", len(edges))
		}
	}
	if len(pending) > 0 {
		if err := e.store.AddNodes(ctx, pending); err != nil {
			log.Error("failed to persist pending links", "count", len(pending), "error", err)
		} else {
			log.Debug("created pending links", "count", len(pending))
		}
	}
}

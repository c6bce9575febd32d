package enrich

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Candidate scoring: exact match beats prefix match beats scope proximity;
// ties break by FQN lexicographic order. A single candidate, or one that
// leads its runner-up by at least dominanceMargin, resolves directly.
const (
	scoreExact     = 3
	scorePrefix    = 2
	scoreProximity = 1

	dominanceMargin = 2
	maxCandidates   = 5
)

type scoredCandidate struct {
	fqn   string
	score int
}

// scoreCandidates ranks the repository's known FQNs against one reference.
// callerScope is the caller's FQN without its own name and parameters.
func scoreCandidates(vocab []string, expr, callerScope string) []scoredCandidate {
	var out []scoredCandidate
	for _, fqn := range vocab {
		score := 0
		bare := stripParams(fqn)
		switch {
		case fqn == expr || bare == expr:
			score = scoreExact
		case strings.HasSuffix(bare, "::"+expr) || strings.HasSuffix(bare, "."+expr):
			score = scorePrefix
		}
		if score == 0 {
			continue
		}
		if callerScope != "" && (strings.HasPrefix(bare, callerScope+"::") || strings.HasPrefix(bare, callerScope+".")) {
			score += scoreProximity
		}
		out = append(out, scoredCandidate{fqn: fqn, score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].fqn < out[j].fqn
	})
	return out
}

// callerScopeOf extracts the enclosing scope path from a source entity
// slug: "file|A::B::f(int)@12" -> "A::B".
func callerScopeOf(sourceEntityID string) string {
	slug := sourceEntityID
	if i := strings.LastIndex(slug, "|"); i >= 0 {
		slug = slug[i+1:]
	}
	fqn, _, ok := model.SplitTempEntitySlug(slug)
	if !ok {
		fqn = slug
	}
	fqn = stripParams(fqn)
	if i := strings.LastIndex(fqn, "::"); i >= 0 {
		return fqn[:i]
	}
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i]
	}
	return ""
}

// RunTier2 processes every READY_FOR_HEURISTICS link of a repository.
// Dominant candidates transition to AWAITING_TARGET; ambiguous ones carry
// their candidate list into READY_FOR_LLM; references with no candidates
// also go to the LLM tier, which may still resolve them from source.
func (e *Engine) RunTier2(ctx context.Context, repoSlug string) error {
	log := e.log.With("tier", 2, "repo", repoSlug)

	links, err := e.store.FindNodes(ctx, map[string]any{
		"type":        model.TypePendingLink,
		"status":      string(model.StatusReadyForHeuristics),
		"repo_id_str": repoSlug,
	}, 0)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		log.Info("no links ready for heuristics")
		return nil
	}

	vocab, err := e.vocab.FQNs(ctx, repoSlug)
	if err != nil {
		return err
	}

	resolved, escalated := 0, 0
	for _, link := range links {
		expr := linkString(link, "target_expression")
		callerScope := callerScopeOf(linkString(link, "source_entity_id"))
		scored := scoreCandidates(vocab, expr, callerScope)

		if len(scored) == 1 || (len(scored) > 1 && scored[0].score-scored[1].score >= dominanceMargin) {
			if err := setLinkStatus(ctx, e.store, link, model.StatusAwaitingTarget, map[string]any{
				"awaits_fqn":        scored[0].fqn,
				"resolution_method": "heuristic",
			}); err != nil {
				return err
			}
			resolved++
			continue
		}

		candidates := make([]string, 0, maxCandidates)
		for i := 0; i < len(scored) && i < maxCandidates; i++ {
			candidates = append(candidates, scored[i].fqn)
		}
		if err := setLinkStatus(ctx, e.store, link, model.StatusReadyForLLM, map[string]any{
			"candidates": candidates,
		}); err != nil {
			return err
		}
		escalated++
	}

	log.Info("heuristics pass complete", "links", len(links), "resolved", resolved, "escalated", escalated)
	return nil
}

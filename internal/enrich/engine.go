package enrich

import (
	"context"
	"log/slog"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/llm"
	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Engine runs the three resolution tiers against the graph store.
type Engine struct {
	store        graph.Store
	llm          llm.StructuredCompleter
	cache        *ResolutionCache
	vocab        *TypeVocabulary
	llmBatchSize int
	log          *slog.Logger
}

// Options configures an Engine.
type Options struct {
	Store        graph.Store
	LLM          llm.StructuredCompleter
	Cache        *ResolutionCache // optional; nil disables cache lookups
	LLMBatchSize int
}

// NewEngine builds an enrichment engine.
func NewEngine(opts Options) *Engine {
	if opts.LLMBatchSize <= 0 {
		opts.LLMBatchSize = 20
	}
	return &Engine{
		store:        opts.Store,
		llm:          opts.LLM,
		cache:        opts.Cache,
		vocab:        NewTypeVocabulary(opts.Store),
		llmBatchSize: opts.LLMBatchSize,
		log:          logging.Component("enrichment"),
	}
}

// InvalidateVocabulary drops the cached FQN vocabulary for a repository.
// Called after each file ingestion so tier 2 sees fresh definitions.
func (e *Engine) InvalidateVocabulary(repoSlug string) {
	e.vocab.Invalidate(repoSlug)
}

// PromotePending moves every PENDING_RESOLUTION link of a repository to
// READY_FOR_HEURISTICS. Returns the number promoted.
func (e *Engine) PromotePending(ctx context.Context, repoSlug string) (int, error) {
	links, err := e.store.FindNodes(ctx, map[string]any{
		"type":        model.TypePendingLink,
		"status":      string(model.StatusPendingResolution),
		"repo_id_str": repoSlug,
	}, 0)
	if err != nil {
		return 0, err
	}
	for _, link := range links {
		if err := setLinkStatus(ctx, e.store, link, model.StatusReadyForHeuristics, nil); err != nil {
			return 0, err
		}
	}
	if len(links) > 0 {
		e.log.Info("promoted links to tier 2", "repo", repoSlug, "count", len(links))
	}
	return len(links), nil
}

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// llmPromptTemplate carries the source file plus a JSON array of reference
// requests; the model replies with one resolution per request.
const llmPromptTemplate = `You are resolving call references inside one source file to canonical fully-qualified names.

Source file content:
---
%s
---

References to resolve (JSON array):
%s

For every reference, decide the canonical fully-qualified name of the called entity, preferring the provided candidates when one fits. If a reference cannot be resolved from the available information, use null.

Reply with a JSON object of the form:
{"resolutions": [{"pending_link_id": "<id>", "resolved_canonical_fqn": "<fqn or null>"}]}`

// ResolutionRequest is one reference handed to the LLM.
type ResolutionRequest struct {
	PendingLinkID    string   `json:"pending_link_id"`
	TargetExpression string   `json:"target_expression"`
	Line             int      `json:"line"`
	Candidates       []string `json:"candidates,omitempty"`
}

// BatchResponse is the schema of the LLM's structured reply.
type BatchResponse struct {
	Resolutions []struct {
		PendingLinkID        string  `json:"pending_link_id"`
		ResolvedCanonicalFQN *string `json:"resolved_canonical_fqn"`
	} `json:"resolutions"`
}

// RunTier3 processes every READY_FOR_LLM link of a repository, batched by
// source file. The resolution cache is consulted first; batch-wide errors
// mark the batch's remaining links UNRESOLVABLE with no retry inside the
// cycle.
func (e *Engine) RunTier3(ctx context.Context, repoSlug string) error {
	log := e.log.With("tier", 3, "repo", repoSlug)

	links, err := e.store.FindNodes(ctx, map[string]any{
		"type":        model.TypePendingLink,
		"status":      string(model.StatusReadyForLLM),
		"repo_id_str": repoSlug,
	}, 0)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		log.Info("no links ready for llm processing")
		return nil
	}

	byFile := map[string][]graph.Node{}
	for _, link := range links {
		fileSlug := linkString(link, "source_file_id")
		byFile[fileSlug] = append(byFile[fileSlug], link)
	}
	log.Info("processing llm batches", "links", len(links), "files", len(byFile))

	for fileSlug, fileLinks := range byFile {
		remaining := e.resolveFromCache(ctx, fileLinks, log)
		if len(remaining) == 0 {
			continue
		}
		// Large files page through every link in llmBatchSize calls; nothing
		// is dropped from the cycle.
		if len(remaining) > e.llmBatchSize {
			log.Info("paging llm batch", "file", fileSlug, "links", len(remaining), "page_size", e.llmBatchSize)
		}
		for start := 0; start < len(remaining); start += e.llmBatchSize {
			end := start + e.llmBatchSize
			if end > len(remaining) {
				end = len(remaining)
			}
			page := remaining[start:end]
			if err := e.resolveBatchWithLLM(ctx, fileSlug, page); err != nil {
				log.Error("llm batch failed, marking links unresolvable",
					"file", fileSlug, "links", len(page), "error", err)
				for _, link := range page {
					_ = setLinkStatus(ctx, e.store, link, model.StatusUnresolvable, map[string]any{
						"reason": fmt.Sprintf("batch processing failed: %v", err),
					})
				}
			}
		}
	}

	log.Info("llm pass complete")
	return nil
}

// resolveFromCache transitions cached links straight to AWAITING_TARGET and
// returns those still needing an LLM call.
func (e *Engine) resolveFromCache(ctx context.Context, links []graph.Node, log *slog.Logger) []graph.Node {
	var remaining []graph.Node
	for _, link := range links {
		if fqn, hit := e.cache.Get(link.SlugID); hit {
			if err := setLinkStatus(ctx, e.store, link, model.StatusAwaitingTarget, map[string]any{
				"awaits_fqn":        fqn,
				"resolution_method": "cache",
			}); err == nil {
				log.Debug("resolved link from cache", "link", link.SlugID, "fqn", fqn)
				continue
			}
		}
		remaining = append(remaining, link)
	}
	return remaining
}

// resolveBatchWithLLM assembles one prompt for a file's links and applies
// the structured response.
func (e *Engine) resolveBatchWithLLM(ctx context.Context, fileSlug string, links []graph.Node) error {
	if e.llm == nil || !e.llm.Enabled() {
		return fmt.Errorf("llm port not configured")
	}

	sourceCode, err := e.sourceContentFor(ctx, fileSlug)
	if err != nil {
		return err
	}

	requests := make([]ResolutionRequest, 0, len(links))
	for _, link := range links {
		requests = append(requests, ResolutionRequest{
			PendingLinkID:    link.SlugID,
			TargetExpression: linkString(link, "target_expression"),
			Line:             linkInt(link, "line"),
			Candidates:       linkCandidates(link),
		})
	}
	requestsJSON, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(llmPromptTemplate, sourceCode, string(requestsJSON))
	var response BatchResponse
	if err := e.llm.StructuredComplete(ctx, prompt, &response); err != nil {
		return err
	}

	byID := map[string]graph.Node{}
	for _, link := range links {
		byID[link.SlugID] = link
	}
	handled := map[string]bool{}
	for _, resolution := range response.Resolutions {
		link, ok := byID[resolution.PendingLinkID]
		if !ok {
			continue
		}
		handled[resolution.PendingLinkID] = true
		if resolution.ResolvedCanonicalFQN != nil && *resolution.ResolvedCanonicalFQN != "" {
			fqn := *resolution.ResolvedCanonicalFQN
			if err := setLinkStatus(ctx, e.store, link, model.StatusAwaitingTarget, map[string]any{
				"awaits_fqn":        fqn,
				"resolution_method": "llm",
			}); err != nil {
				return err
			}
			e.cache.Put(link.SlugID, fqn)
		} else {
			if err := setLinkStatus(ctx, e.store, link, model.StatusUnresolvable, map[string]any{
				"reason": "llm determined the reference is unresolvable",
			}); err != nil {
				return err
			}
		}
	}
	// Links the model omitted from its reply count as unresolvable too.
	for id, link := range byID {
		if !handled[id] {
			if err := setLinkStatus(ctx, e.store, link, model.StatusUnresolvable, map[string]any{
				"reason": "missing from llm response",
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// sourceContentFor reads a file's content from disk using its SourceFile
// node's recorded absolute path.
func (e *Engine) sourceContentFor(ctx context.Context, fileSlug string) (string, error) {
	nodes, err := e.store.FindNodes(ctx, map[string]any{"slug_id": fileSlug}, 1)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("source file node not found: %s", fileSlug)
	}
	path, _ := nodes[0].Attributes["file_path"].(string)
	if path == "" {
		return "", fmt.Errorf("source file node has no path: %s", fileSlug)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read source for %s: %w", fileSlug, err)
	}
	return string(content), nil
}

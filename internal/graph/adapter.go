package graph

import (
	"strings"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Batch is the adapter's input: one file's parser output plus its
// SourceFile wrapper. The Repository node rides along in every batch so
// that the CONTAINS_FILE edge satisfies in-batch closure under idempotent
// upserts.
type Batch struct {
	Repository    *model.Repository
	File          *model.SourceFile
	Chunks        []model.TextChunk
	Entities      []model.CodeEntity // slugs in temporary "<FQN>@<line>" form
	Relationships []model.Relationship
}

// Adapt translates a batch into graph nodes and edge tuples. It is pure and
// synchronous: no I/O, no suspension.
//
// Contract:
//   - every node carries its slug as slug_id plus the type tag; the UUID is
//     derived deterministically from the slug;
//   - CodeEntity temp slugs are rekeyed to the file-scoped persistent form,
//     and relationship endpoints referencing them are rewritten;
//   - an edge is emitted only when both endpoint slugs exist in this
//     batch's slug set; otherwise it is dropped with a warning;
//   - duplicate slugs within the batch are dropped with a warning (first
//     occurrence wins);
//   - edge types are uppercased.
func Adapt(batch Batch) ([]Node, []Edge) {
	log := logging.Component("adapter")

	repoSlug := ""
	if batch.Repository != nil {
		repoSlug = batch.Repository.SlugID
	}

	var nodes []Node
	slugSet := make(map[string]bool)

	add := func(n Node) {
		if slugSet[n.SlugID] {
			log.Warn("duplicate slug in batch, dropping node", "slug", n.SlugID, "type", n.Type)
			return
		}
		slugSet[n.SlugID] = true
		n.UUID = model.UUIDForSlug(n.SlugID)
		if n.Attributes == nil {
			n.Attributes = map[string]any{}
		}
		n.Attributes["slug_id"] = n.SlugID
		n.Attributes["type"] = n.Type
		nodes = append(nodes, n)
	}

	if batch.Repository != nil {
		add(Node{
			SlugID: batch.Repository.SlugID,
			Type:   model.TypeRepository,
			Attributes: map[string]any{
				"path":        batch.Repository.Path,
				"repo_id_str": batch.Repository.SlugID,
				"timestamp":   batch.Repository.CreatedAt.UTC(),
			},
		})
	}

	fileSlug := ""
	if batch.File != nil {
		fileSlug = batch.File.SlugID
		add(Node{
			SlugID: fileSlug,
			Type:   model.TypeSourceFile,
			Attributes: map[string]any{
				"file_path":     batch.File.AbsPath,
				"relative_path": batch.File.RelPath,
				"file_type":     batch.File.Language,
				"repo_id_str":   batch.File.RepoSlug,
				"timestamp":     batch.File.IngestedAt.UTC(),
			},
		})
	}

	for _, chunk := range batch.Chunks {
		add(Node{
			SlugID: chunk.SlugID,
			Type:   model.TypeTextChunk,
			Attributes: map[string]any{
				"start_line":     chunk.StartLine,
				"end_line":       chunk.EndLine,
				"chunk_content":  chunk.Content,
				"source_file_id": chunk.FileSlug,
				"repo_id_str":    repoSlug,
			},
		})
	}

	// Rekey entity temp slugs to their persistent, file-scoped form.
	rekeyed := make(map[string]string, len(batch.Entities))
	for _, entity := range batch.Entities {
		persistent := model.PersistentEntitySlug(fileSlug, entity.SlugID)
		rekeyed[entity.SlugID] = persistent

		fqn := entity.SlugID
		startLine := 0
		if f, line, ok := model.SplitTempEntitySlug(entity.SlugID); ok {
			fqn = f
			startLine = line
		}
		add(Node{
			SlugID: persistent,
			Type:   entity.Type,
			Attributes: map[string]any{
				"fqn":             fqn,
				"start_line":      startLine,
				"source_code_snippet": entity.Snippet,
				"source_file_id":  fileSlug,
				"repo_id_str":     repoSlug,
				"temp_id":         entity.SlugID,
			},
		})
	}

	resolve := func(slug string) string {
		if persistent, ok := rekeyed[slug]; ok {
			return persistent
		}
		return slug
	}

	var edges []Edge
	for _, rel := range batch.Relationships {
		source := resolve(rel.SourceID)
		target := resolve(rel.TargetID)
		if !slugSet[source] || !slugSet[target] {
			log.Warn("skipping edge, endpoint not in batch",
				"source", rel.SourceID, "target", rel.TargetID, "type", rel.Type)
			continue
		}
		props := rel.Properties
		if props == nil {
			props = map[string]any{}
		}
		edges = append(edges, Edge{
			SourceUUID: model.UUIDForSlug(source),
			TargetUUID: model.UUIDForSlug(target),
			SourceSlug: source,
			TargetSlug: target,
			Type:       strings.ToUpper(rel.Type),
			Properties: props,
		})
	}

	log.Debug("adapted batch", "nodes", len(nodes), "edges", len(edges), "file", fileSlug)
	return nodes, edges
}

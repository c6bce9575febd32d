package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codegraphhq/codegraph/internal/chunker"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/dispatcher"
	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Service is the ingestion host: it consumes the orchestrator stream,
// chunks content, assigns ownership, adapts batches, writes them to the
// graph store, intercepts call-site references for the repair worker, and
// notifies the dispatcher after every persisted file.
type Service struct {
	cfg        *config.Config
	store      graph.Store
	dispatcher *dispatcher.Dispatcher
	stdout     io.Writer
	log        *slog.Logger
}

// NewService wires an ingestion service. stdout receives the per-item
// yield lines; pass io.Discard to silence them.
func NewService(cfg *config.Config, store graph.Store, disp *dispatcher.Dispatcher, stdout io.Writer) *Service {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		dispatcher: disp,
		stdout:     stdout,
		log:        logging.Component("ingest"),
	}
}

// RunOptions parameterize one ingestion run.
type RunOptions struct {
	// Target is a local path or a remote git URL.
	Target string
	// RepoIDOverride forces the repository slug.
	RepoIDOverride string
	// ProjectName names local targets: slug becomes "local/<project>".
	ProjectName string
	// Concurrency caps parser tasks in flight; 0 uses the configured default.
	Concurrency int
	// KeepTemp leaves the temporary clone directory in place.
	KeepTemp bool
	// WaitForEnrichment blocks until the quiescence cycle has run before
	// returning. Off by default: the command exits after ingestion.
	WaitForEnrichment bool
}

// RunSummary reports what one ingestion run produced.
type RunSummary struct {
	RepoSlug      string
	Files         int
	Chunks        int
	Entities      int
	Relationships int
	CallSites     int
	FailedFiles   int
	Yielded       int
	Duration      time.Duration
}

// fileState accumulates one file's stream between its SourceFile event and
// its FileDone event.
type fileState struct {
	file          model.SourceFile
	chunks        []model.TextChunk
	entities      []model.CodeEntity
	relationships []model.Relationship
	refs          []model.CallSiteReference
	sliceSeen     bool
}

// RunIngestion executes the full pipeline for one target.
func (s *Service) RunIngestion(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	start := time.Now()

	repoPath, repoSlug, isTempClone, err := s.resolveTarget(ctx, opts)
	if err != nil {
		return nil, err
	}
	if isTempClone && !opts.KeepTemp {
		defer CleanupTempRepo(repoPath, s.cfg.TempRepoBase())
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.Ingestion.Concurrency
	}

	orch := NewOrchestrator(repoSlug, repoPath, concurrency, s.cfg.Ingestion.ChannelSize)
	events, err := orch.Run(ctx)
	if err != nil {
		return nil, err
	}
	// Drain the stream on early return so the orchestrator can finish.
	defer func() {
		for range events {
		}
	}()

	summary := &RunSummary{RepoSlug: repoSlug}
	var repo *model.Repository
	states := map[string]*fileState{}

	yield := func(itemType, id string) {
		summary.Yielded++
		fmt.Fprintf(s.stdout, "Yielded %d: Type=%s, ID=%s\n", summary.Yielded, itemType, id)
	}

	for event := range events {
		switch e := event.(type) {
		case model.RepositoryEvent:
			repo = &e.Repository
			yield(model.TypeRepository, repo.SlugID)
			// Persist the repository node up front so an empty repo still
			// materializes.
			nodes, _ := graph.Adapt(graph.Batch{Repository: repo})
			if err := s.store.AddNodes(ctx, nodes); err != nil {
				return summary, errors.StoreError(err, "failed to persist repository node")
			}

		case model.SourceFileEvent:
			states[e.File.SlugID] = &fileState{file: e.File}
			summary.Files++
			yield(model.TypeSourceFile, e.File.SlugID)

		case model.FileSliceEvent:
			state, ok := states[e.FileSlug]
			if !ok {
				s.log.Warn("slice event for unknown file", "file", e.FileSlug)
				continue
			}
			if state.sliceSeen {
				s.log.Warn("duplicate slice event", "file", e.FileSlug)
				continue
			}
			state.sliceSeen = true
			state.chunks = chunker.Chunks(e.FileSlug, e.Content, e.Slices)

		case model.ParserItemEvent:
			state, ok := states[e.FileSlug]
			if !ok {
				s.log.Warn("parser item for unknown file", "file", e.FileSlug)
				continue
			}
			switch item := e.Item.(type) {
			case model.CodeEntity:
				state.entities = append(state.entities, item)
			case model.Relationship:
				state.relationships = append(state.relationships, item)
			case model.CallSiteReference:
				// CSRs are intercepted here and forwarded to the repair
				// worker; they are never persisted as graph nodes.
				state.refs = append(state.refs, item)
				summary.CallSites++
			}

		case model.FileDoneEvent:
			state, ok := states[e.FileSlug]
			if !ok {
				continue
			}
			if err := s.persistFile(ctx, repo, state, summary, yield); err != nil {
				s.log.Error("file ingestion failed", "file", e.FileSlug, "error", err)
				summary.FailedFiles++
				delete(states, e.FileSlug)
				continue
			}
			s.dispatcher.NotifyIngestionActivity(ctx, repo.SlugID, state.entities, state.refs)
			delete(states, e.FileSlug)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, errors.Wrap(err, errors.KindInternal, "ingestion cancelled")
	}

	if opts.WaitForEnrichment {
		s.log.Info("waiting for enrichment cycle", "quiescence", s.cfg.Enrichment.QuiescencePeriod)
		s.dispatcher.Wait()
	}

	summary.Duration = time.Since(start)
	s.log.Info("ingestion complete",
		"repo", repoSlug,
		"files", summary.Files,
		"chunks", summary.Chunks,
		"entities", summary.Entities,
		"relationships", summary.Relationships,
		"call_sites", summary.CallSites,
		"failed_files", summary.FailedFiles,
		"duration", summary.Duration,
	)
	return summary, nil
}

// resolveTarget turns the run target into a repository path and slug,
// cloning remote URLs into the temp area.
func (s *Service) resolveTarget(ctx context.Context, opts RunOptions) (repoPath, repoSlug string, isTempClone bool, err error) {
	if IsRemoteTarget(opts.Target) {
		clonePath, derivedID, cloneErr := CloneToTemp(ctx, opts.Target, s.cfg.TempRepoBase())
		if cloneErr != nil {
			return "", "", false, cloneErr
		}
		repoSlug = derivedID
		if opts.RepoIDOverride != "" {
			repoSlug = opts.RepoIDOverride
		}
		return clonePath, repoSlug, true, nil
	}

	info, statErr := os.Stat(opts.Target)
	if statErr != nil || !info.IsDir() {
		return "", "", false, errors.InputError("local path %q is not a valid directory", opts.Target)
	}
	abs, absErr := filepath.Abs(opts.Target)
	if absErr != nil {
		return "", "", false, errors.Wrapf(absErr, errors.KindInput, "cannot resolve %q", opts.Target)
	}

	repoSlug = opts.RepoIDOverride
	if repoSlug == "" {
		project := opts.ProjectName
		if project == "" {
			project = filepath.Base(abs)
		}
		repoSlug = "local/" + project
	}
	return abs, repoSlug, false, nil
}

// persistFile adapts and writes one file's batch: the SourceFile node, its
// chunks, its entities (rekeyed), and every in-batch edge, including the
// ownership edges built here.
func (s *Service) persistFile(ctx context.Context, repo *model.Repository, state *fileState, summary *RunSummary, yield func(string, string)) error {
	if repo == nil {
		return errors.New(errors.KindInternal, "file batch before repository event")
	}

	relationships := make([]model.Relationship, 0, len(state.relationships)+len(state.chunks)+len(state.entities)+1)
	relationships = append(relationships, model.Relationship{
		SourceID: repo.SlugID,
		TargetID: state.file.SlugID,
		Type:     model.RelContainsFile,
	})
	for _, chunk := range state.chunks {
		relationships = append(relationships, model.Relationship{
			SourceID: state.file.SlugID,
			TargetID: chunk.SlugID,
			Type:     model.RelContainsChunk,
		})
	}
	// Ownership: an entity belongs to the chunk whose line range contains
	// its start line, falling back to the file when no chunk does.
	for _, entity := range state.entities {
		owner := state.file.SlugID
		if _, line0, ok := model.SplitTempEntitySlug(entity.SlugID); ok {
			line1 := line0 + 1
			for _, chunk := range state.chunks {
				if chunk.StartLine <= line1 && line1 <= chunk.EndLine {
					owner = chunk.SlugID
					break
				}
			}
		}
		relationships = append(relationships, model.Relationship{
			SourceID: owner,
			TargetID: entity.SlugID,
			Type:     model.RelContainsEntity,
		})
	}
	relationships = append(relationships, state.relationships...)

	nodes, edges := graph.Adapt(graph.Batch{
		Repository:    repo,
		File:          &state.file,
		Chunks:        state.chunks,
		Entities:      state.entities,
		Relationships: relationships,
	})

	if err := s.store.AddNodes(ctx, nodes); err != nil {
		return errors.StoreError(err, "node batch write failed for %s", state.file.SlugID)
	}
	if err := s.store.AddEdges(ctx, edges); err != nil {
		return errors.StoreError(err, "edge batch write failed for %s", state.file.SlugID)
	}

	for _, chunk := range state.chunks {
		summary.Chunks++
		yield(model.TypeTextChunk, chunk.SlugID)
	}
	for _, entity := range state.entities {
		summary.Entities++
		yield(entity.Type, entity.SlugID)
	}
	for _, edge := range edges {
		summary.Relationships++
		yield("Relationship", fmt.Sprintf("%s->%s", edge.SourceSlug, edge.TargetSlug))
	}
	return nil
}

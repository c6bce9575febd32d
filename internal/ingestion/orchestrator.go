package ingestion

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/logging"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// Orchestrator drives discovery and fans parser tasks out under a
// concurrency cap, producing a single ordered event stream: Repository,
// then every SourceFile in discovery order, then per-file parser output.
type Orchestrator struct {
	repoSlug    string
	repoPath    string
	concurrency int
	channelSize int
	log         *slog.Logger
}

// NewOrchestrator builds an orchestrator for one repository.
func NewOrchestrator(repoSlug, repoPath string, concurrency, channelSize int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 25
	}
	if channelSize <= 0 {
		channelSize = 256
	}
	return &Orchestrator{
		repoSlug:    repoSlug,
		repoPath:    repoPath,
		concurrency: concurrency,
		channelSize: channelSize,
		log:         logging.Component("orchestrator").With("repo", repoSlug),
	}
}

// parserTask is one file queued for parsing.
type parserTask struct {
	file    model.SourceFile
	parser  parser.Parser
	content string
}

// taskOutput pairs a task with its gathered parser result.
type taskOutput struct {
	file    model.SourceFile
	content string
	result  *parser.Result
}

// Run validates the repository path and returns the event channel. The
// stream is produced by a background goroutine and closed when complete.
func (o *Orchestrator) Run(ctx context.Context) (<-chan model.Event, error) {
	discovered, err := DiscoverFiles(o.repoPath)
	if err != nil {
		return nil, err
	}

	events := make(chan model.Event, o.channelSize)
	go func() {
		defer close(events)
		o.produce(ctx, discovered, events)
	}()
	return events, nil
}

func (o *Orchestrator) produce(ctx context.Context, discovered <-chan DiscoveredFile, events chan<- model.Event) {
	start := time.Now()
	o.log.Info("starting", "path", o.repoPath)

	// Drain discovery on early exit so its walker goroutine can finish.
	defer func() {
		for range discovered {
		}
	}()

	send := func(e model.Event) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(model.RepositoryEvent{Repository: model.Repository{
		SlugID:    o.repoSlug,
		Path:      o.repoPath,
		CreatedAt: time.Now(),
	}}) {
		return
	}

	// Parser instances are cached per language key; a language whose
	// dedicated parser fails to instantiate is logged once and skipped
	// thereafter (its files get no parser and yield no parser output).
	parserCache := map[string]parser.Parser{}
	failedLanguages := map[string]bool{}
	parserFor := func(language string) parser.Parser {
		if p, ok := parserCache[language]; ok {
			return p
		}
		if failedLanguages[language] {
			return nil
		}
		p, err := parser.New(language)
		if err != nil {
			o.log.Error("failed to init parser, skipping language", "language", language, "error", err)
			failedLanguages[language] = true
			return nil
		}
		parserCache[language] = p
		return p
	}

	// Gather every discovered file first: all SourceFile events precede any
	// parser output, so the adapter always sees a file's node before its
	// chunks and entities.
	var tasks []parserTask
	for file := range discovered {
		sf := model.SourceFile{
			SlugID:     model.SourceFileSlug(o.repoSlug, file.RelPath),
			RepoSlug:   o.repoSlug,
			AbsPath:    file.AbsPath,
			RelPath:    file.RelPath,
			Language:   file.Language,
			IngestedAt: time.Now(),
		}
		if !send(model.SourceFileEvent{
			File:    sf,
			Context: map[string]string{"relative_path": file.RelPath, "language_key": file.Language},
		}) {
			return
		}
		tasks = append(tasks, parserTask{file: sf, parser: parserFor(file.Language)})
	}

	// Execute parser tasks in bounded batches. Per-task failures are
	// logged and never abort the run.
	itemsYielded := 0
	for batchStart := 0; batchStart < len(tasks); batchStart += o.concurrency {
		batchEnd := batchStart + o.concurrency
		if batchEnd > len(tasks) {
			batchEnd = len(tasks)
		}
		batch := tasks[batchStart:batchEnd]
		outputs := make([]taskOutput, len(batch))

		var g errgroup.Group
		for i := range batch {
			i := i
			task := batch[i]
			g.Go(func() error {
				outputs[i] = o.runParserTask(ctx, task)
				return nil
			})
		}
		_ = g.Wait()

		for _, out := range outputs {
			if !send(model.FileSliceEvent{FileSlug: out.file.SlugID, Slices: out.result.SliceLines, Content: out.content}) {
				return
			}
			for _, item := range out.result.Items {
				if !send(model.ParserItemEvent{FileSlug: out.file.SlugID, Item: item}) {
					return
				}
				itemsYielded++
			}
			if !send(model.FileDoneEvent{FileSlug: out.file.SlugID}) {
				return
			}
		}
	}

	o.log.Info("finished", "files", len(tasks), "parser_items", itemsYielded, "duration", time.Since(start))
}

// runParserTask reads and parses one file, recovering from parser panics so
// a single malformed file never aborts the run.
func (o *Orchestrator) runParserTask(ctx context.Context, task parserTask) (out taskOutput) {
	out.file = task.file
	out.result = &parser.Result{SliceLines: model.SliceLines{}}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("parser panicked", "file", task.file.SlugID, "panic", r)
		}
	}()

	raw, err := os.ReadFile(task.file.AbsPath)
	if err != nil {
		o.log.Error("could not read file", "file", task.file.AbsPath, "error", err)
		return out
	}
	out.content = string(raw)

	if task.parser == nil {
		return out
	}
	if result := task.parser.Parse(ctx, task.file.SlugID, out.content); result != nil {
		out.result = result
	}
	return out
}

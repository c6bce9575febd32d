package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/dispatcher"
	"github.com/codegraphhq/codegraph/internal/enrich"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/ingestion"
	"github.com/codegraphhq/codegraph/internal/llm"
	"github.com/codegraphhq/codegraph/internal/logging"
)

var (
	ingestRepoID      string
	ingestProjectName string
	ingestConcurrency int
	ingestKeepTemp    bool
	ingestWaitEnhance bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [target]",
	Short: "Ingest a repository and materialize its property graph",
	Long: `Ingest walks a repository (local path or remote git URL), parses every
recognized file, and writes files, chunks, entities, and relationships to
the graph backend. Call-site references are resolved by the repair worker
immediately and by the heuristic/LLM tiers once the repository goes quiet.

Examples:
  codegraph ingest /path/to/repo --repo-id my_project
  codegraph ingest https://github.com/owner/name.git
  codegraph ingest /path/to/repo --concurrency 50 --wait-enrichment`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRepoID, "repo-id", "", "explicit repository id (defaults to derived name)")
	ingestCmd.Flags().StringVar(&ingestProjectName, "project-name", os.Getenv("CODEGRAPH_PROJECT"), "project name for the local/ prefix when target is a local path")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "maximum files parsed concurrently")
	ingestCmd.Flags().BoolVar(&ingestKeepTemp, "keep-temp", false, "do not delete the temporary clone directory")
	ingestCmd.Flags().BoolVar(&ingestWaitEnhance, "wait-enrichment", false, "block until the quiescence enhancement cycle has run")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logging.Component("cli")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	cache, err := enrich.OpenResolutionCache(cfg.Enrichment.CachePath)
	if err != nil {
		log.Warn("resolution cache unavailable, continuing without it", "error", err)
	} else {
		defer cache.Close()
	}

	llmClient := llm.NewClient(llm.Options{
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		RatePerMin: cfg.LLM.RatePerMin,
	})

	engine := enrich.NewEngine(enrich.Options{
		Store:        store,
		LLM:          llmClient,
		Cache:        cache,
		LLMBatchSize: cfg.Enrichment.LLMBatchSize,
	})
	disp := dispatcher.New(store, engine, cfg.Enrichment.QuiescencePeriod)
	service := ingestion.NewService(cfg, store, disp, os.Stdout)

	summary, err := service.RunIngestion(ctx, ingestion.RunOptions{
		Target:            args[0],
		RepoIDOverride:    ingestRepoID,
		ProjectName:       ingestProjectName,
		Concurrency:       ingestConcurrency,
		KeepTemp:          ingestKeepTemp,
		WaitForEnrichment: ingestWaitEnhance,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nIngestion finished for %s\n", summary.RepoSlug)
	fmt.Fprintf(os.Stderr, "  Files:         %d (%d failed)\n", summary.Files, summary.FailedFiles)
	fmt.Fprintf(os.Stderr, "  Chunks:        %d\n", summary.Chunks)
	fmt.Fprintf(os.Stderr, "  Entities:      %d\n", summary.Entities)
	fmt.Fprintf(os.Stderr, "  Relationships: %d\n", summary.Relationships)
	fmt.Fprintf(os.Stderr, "  Call sites:    %d\n", summary.CallSites)
	fmt.Fprintf(os.Stderr, "  Duration:      %v\n", summary.Duration)
	return nil
}

// openStore creates the configured graph backend.
func openStore(ctx context.Context) (graph.Store, error) {
	switch cfg.Graph.Backend {
	case "memory":
		return graph.NewMemoryStore(), nil
	default:
		return graph.NewNeo4jStore(ctx, graph.Neo4jOptions{
			URI:        cfg.Graph.URI,
			User:       cfg.Graph.User,
			Password:   cfg.Graph.Password,
			Database:   cfg.Graph.Database,
			BatchSize:  cfg.Graph.BatchSize,
			MaxRetries: cfg.Graph.MaxRetries,
			RetryBase:  cfg.Graph.RetryBase,
		})
	}
}

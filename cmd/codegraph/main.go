package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose bool
	cfg     *config.Config
)

const (
	exitOK       = 0
	exitInput    = 1
	exitPipeline = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsInput(err) {
			os.Exit(exitInput)
		}
		os.Exit(exitPipeline)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Codegraph - incremental code property graph ingestion",
	Long: `Codegraph ingests source repositories and materializes a typed property
graph of files, text chunks, code entities, and the relationships among
them, with asynchronous multi-tier link enrichment.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logging.DefaultConfig(verbose)); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			logging.Default().Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable DEBUG logging")

	rootCmd.SetVersionTemplate(`codegraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
}

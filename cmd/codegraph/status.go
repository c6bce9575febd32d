package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [repo-id]",
	Short: "Show a repository's ingestion heartbeat",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	hb, err := store.GetHeartbeat(ctx, args[0])
	if err != nil {
		return err
	}
	if hb == nil {
		fmt.Fprintf(os.Stderr, "No heartbeat recorded for %s\n", args[0])
		return nil
	}

	fmt.Fprintf(os.Stderr, "Repository:    %s\n", args[0])
	fmt.Fprintf(os.Stderr, "Status:        %s\n", hb.Status)
	fmt.Fprintf(os.Stderr, "Last activity: %s\n", hb.LastActivity)
	if hb.Error != "" {
		fmt.Fprintf(os.Stderr, "Error:         %s\n", hb.Error)
	}
	return nil
}

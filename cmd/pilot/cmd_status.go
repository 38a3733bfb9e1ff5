package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"foampilot/internal/backend"
)

// statusCmd fetches one status snapshot for a submitted job.
var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Fetch the current status of a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusCmd,
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	runner := newRunner(cfg)
	jobID := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	raw, err := runner.Status(ctx, jobID)
	if err != nil {
		return err
	}
	snap := backend.MapSnapshot(raw, runner.DownloadURL(jobID))

	fmt.Printf("Job %s: %s\n", jobID, snap.Status)
	if snap.Message != "" {
		fmt.Printf("  %s\n", snap.Message)
	}
	if snap.DownloadRef != "" {
		fmt.Printf("  Download: %s\n", snap.DownloadRef)
	}
	if snap.LogTail != "" {
		fmt.Println()
		fmt.Println("--- log tail ---")
		fmt.Println(snap.LogTail)
	}
	return nil
}

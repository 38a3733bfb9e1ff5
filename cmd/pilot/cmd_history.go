package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"foampilot/cmd/pilot/config"
	"foampilot/internal/history"
)

var historyLimit int

// historyCmd lists recent runs from the local history database.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE:  runHistoryCmd,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tCASE\tSTATUS\tSUBMITTED\tDOWNLOAD")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.JobID, r.CaseName, r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"), r.DownloadRef)
	}
	return w.Flush()
}

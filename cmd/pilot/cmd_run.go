package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"foampilot/cmd/pilot/config"
	"foampilot/internal/attach"
	"foampilot/internal/history"
	"foampilot/internal/logging"
	"foampilot/internal/run"
)

// runCmd submits a single requirement and polls it to completion.
var runCmd = &cobra.Command{
	Use:   "run [requirement]",
	Short: "Submit a requirement and poll the job to completion",
	Long: `Runs the full pipeline once without the chat interface:
the requirement is checked, translated, submitted to the job bridge
and polled until it reaches a terminal state.

Ctrl+C stops polling; the backend job keeps running and can be
inspected later with 'pilot status <job-id>'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOneShot,
}

// consoleSink prints orchestrator events to stdout.
type consoleSink struct {
	done chan run.Outcome
}

func (s *consoleSink) Notice(markdown string) {
	fmt.Println(markdown)
}

func (s *consoleSink) Status(text string) {
	fmt.Println("· " + text)
}

func (s *consoleSink) LogBlock(markdown string, streaming bool) {
	// Live updates would spam a non-interactive terminal; only the
	// final block is printed.
	if !streaming {
		fmt.Println()
		fmt.Println(markdown)
	}
}

func (s *consoleSink) Finished(outcome run.Outcome) {
	s.done <- outcome
}

func runOneShot(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	sink := &consoleSink{done: make(chan run.Outcome, 1)}
	orch := run.NewOrchestrator(newReasoner(cfg), newRunner(cfg), sink)
	orch.SetCaseName(cfg.CaseName)

	if dir, err := config.AttachDirPath(cfg); err == nil {
		if store, err := attach.NewStore(dir); err == nil {
			orch.SetMeshSource(store)
		} else {
			logging.Boot("attachment store unavailable: %v", err)
		}
	}
	if path, err := config.HistoryPath(); err == nil {
		if store, err := history.Open(path); err == nil {
			defer store.Close()
			orch.SetRecorder(store)
		} else {
			logging.Boot("history store unavailable: %v", err)
		}
	}

	if err := orch.Start(strings.Join(args, " ")); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			orch.Cancel()
		case outcome := <-sink.done:
			switch outcome.State {
			case run.StateSucceeded, run.StateCancelled:
				return nil
			case run.StateBlocked:
				return fmt.Errorf("request needs more information before it can run")
			default:
				return fmt.Errorf("job failed: %s", outcome.Message)
			}
		}
	}
}

// Package main provides the pilot CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"foampilot/cmd/pilot/config"
	"foampilot/internal/backend"
	"foampilot/internal/logging"
)

const version = "0.4.0"

var (
	// Global flags
	verbose     bool
	workspace   string
	reasonerURL string
	bridgeURL   string
	modelAlias  string
	caseName    string
	httpTimeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "foampilot - chat-driven OpenFOAM case submission",
	Long: `foampilot turns a plain-English simulation requirement into a running
OpenFOAM case. A reasoning service first checks the requirement for
missing parameters and suggests defaults; once it passes, the request is
translated into a structured case description and handed to the job
bridge, which runs the solver and serves the result archive.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
			workspace = cwd
		}
		if err := logging.Initialize(workspace, verbose); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("pilot %s starting: %s", version, cmd.CalledAs())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pilot %s\n", version)
	},
}

// loadConfig reads the saved configuration and applies flag overrides.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		logging.Boot("config load failed, using defaults: %v", err)
	}
	if reasonerURL != "" {
		cfg.ReasonerURL = reasonerURL
	}
	if bridgeURL != "" {
		cfg.BridgeURL = bridgeURL
	}
	if modelAlias != "" {
		cfg.Model = modelAlias
	}
	if caseName != "" {
		cfg.CaseName = caseName
	}
	if verbose {
		cfg.Debug = true
	}
	return cfg
}

// resolveModel maps the configured model alias through the profile
// registry.
func resolveModel(cfg config.Config) string {
	path, err := config.ProfilesPath()
	if err != nil {
		return cfg.Model
	}
	profiles, err := config.LoadProfiles(path)
	if err != nil {
		logging.Boot("profile registry unreadable, using raw model name: %v", err)
		return cfg.Model
	}
	return config.ResolveModel(profiles, cfg.Model)
}

func newReasoner(cfg config.Config) *backend.ReasonerClient {
	return backend.NewReasonerClient(backend.ReasonerConfig{
		BaseURL: cfg.ReasonerURL,
		Model:   resolveModel(cfg),
	})
}

func newRunner(cfg config.Config) *backend.BridgeClient {
	return backend.NewBridgeClient(backend.BridgeConfig{
		BaseURL: cfg.BridgeURL,
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&reasonerURL, "reasoner", "", "Reasoning service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&bridgeURL, "bridge", "", "Job bridge base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&modelAlias, "model", "m", "", "Model alias or name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&caseName, "case", "", "Case label sent with submissions")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", 2*time.Minute, "Deadline for one-shot check/status calls")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scholarforge/cmd/scholarforge/ui"
	"scholarforge/internal/config"
	"scholarforge/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	timeout    time.Duration

	cfg    *config.Config
	styles = ui.DefaultStyles()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scholarforge",
	Short: "Guarded LLM generation for adaptive learning",
	Long: `scholarforge runs the generative modules of an adaptive learning service
behind a fixed pipeline: prompt, invoke, parse, safety check, audit and
contract validation. Nothing a model writes reaches a learner, parent or the
item bank without passing every gate.

Configuration is read from the YAML file given by --config, then overridden
by SCHOLARFORGE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(loaded.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "scholarforge.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(
		modulesCmd,
		runModuleCmd,
		skillsCmd,
		generateCmd,
		approveCmd,
		publishCmd,
		planCmd,
		hintCmd,
		evaluateCmd,
		diagnoseCmd,
		reportCmd,
		usageCmd,
		runsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

// emit prints v as JSON under --json, or the rendered view otherwise.
func emit(cmd *cobra.Command, v any, view func() string) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprint(out, view())
	return err
}

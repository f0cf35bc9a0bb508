// issueflow is an agent-assisted issue lifecycle pipeline: raw reports
// come in as drafts, an external reasoning agent triages, clusters, and
// prioritizes them, critical issues fast-track straight to resolution,
// and humans gate the decisions that matter.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/agent"
	"github.com/chatretro/issueflow/internal/config"
	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/lockfile"
	"github.com/chatretro/issueflow/internal/pipeline"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	runtimeDirFlag string
	verboseFlag    bool
	quietFlag      bool
	yesFlag        bool
)

var rootCmd = &cobra.Command{
	Use:   "issueflow",
	Short: "issueflow - agent-assisted issue lifecycle pipeline",
	Long: `Drafts flow through triage, clustering, prioritization, and resolution.
An external reasoning agent does the judgment calls; humans gate the
priorities and risky fixes; critical issues skip the queue.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("issueflow version %s\n", Version)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			debug.SetVerbose(true)
		}
		if quietFlag {
			debug.SetQuiet(true)
		}
		if err := telemetry.Init(cmd.Context(), "issueflow", Version); err != nil {
			debug.Warnf("telemetry init: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runtimeDirFlag, "runtime-dir", "", "Runtime directory (default: ./.issueflow, override via ISSUEFLOW_RUNTIME_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// runtimeDir resolves the runtime directory: flag, then environment, then
// ./.issueflow.
func runtimeDir() string {
	if runtimeDirFlag != "" {
		return runtimeDirFlag
	}
	if dir := os.Getenv("ISSUEFLOW_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(".", ".issueflow")
}

func openStore() (*statestore.Store, error) {
	return statestore.New(statestore.DefaultPaths(runtimeDir()))
}

// newOrchestrator wires a pipeline from config. Pipeline commands take the
// single-writer lock; the caller releases it via the returned store.
func newOrchestrator(approver pipeline.Approver) (*pipeline.Orchestrator, *statestore.Store, error) {
	cfg, err := config.Load(runtimeDir())
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	if err := store.Acquire(); err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return nil, nil, fmt.Errorf("another issueflow process holds the state lock")
		}
		return nil, nil, err
	}

	invoker, err := newInvoker(cfg)
	if err != nil {
		_ = store.Release()
		return nil, nil, err
	}
	lib, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		_ = store.Release()
		return nil, nil, err
	}

	var out = os.Stdout
	o := pipeline.New(store, invoker, lib, approver,
		pipeline.WithTimeout(cfg.Agent.Timeout),
		pipeline.WithOutput(out),
	)
	return o, store, nil
}

func newInvoker(cfg *config.Settings) (agent.Invoker, error) {
	switch cfg.Agent.Transport {
	case config.TransportAPI:
		return agent.NewAPIRunner("", cfg.Agent.Model)
	default:
		return &agent.CLIRunner{
			Binary:   cfg.Agent.Binary,
			MaxTurns: cfg.Agent.MaxTurns,
		}, nil
	}
}

// gateApprover returns the approver for gated commands: automatic with
// --yes, interactive otherwise.
func gateApprover() pipeline.Approver {
	if yesFlag {
		return pipeline.Auto{}
	}
	return &interactiveApprover{}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/pipeline"
)

var approveCmd = &cobra.Command{
	Use:   "approve <cluster-id>",
	Short: "Approve a pending cluster for resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLockedPipeline(func(o *pipeline.Orchestrator) error {
			if err := o.ApproveCluster(args[0]); err != nil {
				return err
			}
			fmt.Printf("Cluster %s approved.\n", args[0])
			return nil
		})
	},
}

var deferCmd = &cobra.Command{
	Use:   "defer <issue-id>",
	Short: "Defer an issue out of the active pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLockedPipeline(func(o *pipeline.Orchestrator) error {
			if err := o.DeferIssue(args[0]); err != nil {
				return err
			}
			fmt.Printf("Issue %s deferred.\n", args[0])
			return nil
		})
	},
}

var wontfixCmd = &cobra.Command{
	Use:   "wontfix <issue-id>",
	Short: "Close an issue without resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLockedPipeline(func(o *pipeline.Orchestrator) error {
			if err := o.WontFixIssue(args[0]); err != nil {
				return err
			}
			fmt.Printf("Issue %s marked wont_fix.\n", args[0])
			return nil
		})
	},
}

// withLockedPipeline runs one management operation under the state lock.
func withLockedPipeline(fn func(*pipeline.Orchestrator) error) error {
	o, store, err := newOrchestrator(pipeline.Auto{})
	if err != nil {
		return err
	}
	defer func() { _ = store.Release() }()
	return fn(o)
}

func init() {
	rootCmd.AddCommand(approveCmd, deferCmd, wontfixCmd)
}

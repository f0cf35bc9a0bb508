package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/ui"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full pipeline: triage, fast-track, cluster, prioritize, resolve",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, store, err := newOrchestrator(gateApprover())
		if err != nil {
			return err
		}
		defer func() { _ = store.Release() }()

		report, err := o.Process(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(ui.HeaderStyle.Render("Pipeline run complete"))
		fmt.Printf("  imported %d, triaged %d, clustered %d, prioritized %d\n",
			len(report.Imported), len(report.Triaged), len(report.Clustered), len(report.Prioritized))
		if len(report.FastTracked) > 0 {
			fmt.Printf("  %s %d critical issues fast-tracked\n", ui.WarnStyle.Render("!"), len(report.FastTracked))
		}
		for _, f := range report.FastTrackFailures {
			fmt.Printf("  %s fast-track of %s failed: %v\n", ui.BadStyle.Render("✗"), f.IssueID, f.Err)
		}
		if report.GateRejected {
			fmt.Println(ui.MutedStyle.Render("  prioritization rejected; resolution skipped"))
			return nil
		}
		fmt.Printf("  resolved %d clusters (%d plans rejected)\n",
			len(report.ResolvedClusters), len(report.PlanRejected))
		return nil
	},
}

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Import drafts and run the triage stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, store, err := newOrchestrator(gateApprover())
		if err != nil {
			return err
		}
		defer func() { _ = store.Release() }()

		result, err := o.RunTriage(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d drafts, triaged %d issues.\n", len(result.Imported), len(result.Triaged))
		return nil
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group triaged issues into clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, store, err := newOrchestrator(gateApprover())
		if err != nil {
			return err
		}
		defer func() { _ = store.Release() }()

		result, err := o.RunClustering(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Created %d clusters covering %d issues.\n", len(result.Clusters), len(result.Clustered))
		return nil
	},
}

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Score issues and review the ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, store, err := newOrchestrator(gateApprover())
		if err != nil {
			return err
		}
		defer func() { _ = store.Release() }()

		result, err := o.RunPrioritization(cmd.Context())
		if err != nil {
			return err
		}
		if result.Rejected {
			fmt.Println("Ranking rejected; nothing committed.")
			return nil
		}
		fmt.Printf("Prioritized %d issues.\n", len(result.Prioritized))
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <cluster-id>",
	Short: "Resolve one approved cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, store, err := newOrchestrator(gateApprover())
		if err != nil {
			return err
		}
		defer func() { _ = store.Release() }()

		result, err := o.RunResolution(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if result.PlanRejected {
			fmt.Printf("Fix plan for %s rejected; cluster left approved for retry.\n", result.ClusterID)
			return nil
		}
		fmt.Printf("Resolved %s: %d issues. %s\n", result.ClusterID, len(result.ResolvedIssues), result.Notes)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{processCmd, triageCmd, clusterCmd, prioritizeCmd, resolveCmd} {
		cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Approve all human gates automatically")
		rootCmd.AddCommand(cmd)
	}
}

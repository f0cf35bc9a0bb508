package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/pipeline"
	"github.com/chatretro/issueflow/internal/types"
	"github.com/chatretro/issueflow/internal/ui"
)

var listStatusFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		o := pipeline.New(store, nil, nil, nil)

		var statuses []types.Status
		if listStatusFlag != "" {
			status := types.Status(listStatusFlag)
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q", listStatusFlag)
			}
			statuses = append(statuses, status)
		}
		issues, err := o.ListIssues(statuses...)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Println("No issues.")
			return nil
		}

		fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("%-14s %-12s %-8s %6s  %s", "ID", "STATUS", "SEV", "SCORE", "TITLE")))
		for _, issue := range issues {
			score := "-"
			if issue.PriorityScore != nil {
				score = fmt.Sprintf("%.1f", *issue.PriorityScore)
			}
			fmt.Printf("%-14s %s %s %6s  %s\n",
				issue.ID,
				ui.StatusStyle(issue.Status).Render(fmt.Sprintf("%-12s", issue.Status)),
				ui.SeverityStyle(issue.Severity).Render(fmt.Sprintf("%-8s", issue.Severity)),
				score,
				issue.Title,
			)
		}
		return nil
	},
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters by descending priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		o := pipeline.New(store, nil, nil, nil)

		clusters, err := o.ListClusters()
		if err != nil {
			return err
		}
		if len(clusters) == 0 {
			fmt.Println("No clusters.")
			return nil
		}

		fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("%-18s %-12s %6s %7s  %s", "ID", "STATUS", "SCORE", "ISSUES", "THEME")))
		for _, c := range clusters {
			fmt.Printf("%-18s %-12s %6.1f %7d  %s\n",
				c.ID, c.Status, c.AggregatePriority, len(c.IssueIDs), c.Theme)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatusFlag, "status", "", "Filter by status (draft, triaged, clustered, prioritized, in_progress, resolved, wont_fix, deferred)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clustersCmd)
}

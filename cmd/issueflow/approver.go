package main

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/chatretro/issueflow/internal/types"
	"github.com/chatretro/issueflow/internal/ui"
)

// interactiveApprover implements the two human gates as terminal prompts.
// Gates block without a timeout; Ctrl+C counts as rejection.
type interactiveApprover struct{}

func (interactiveApprover) ApprovePriorities(issues []*types.Issue, clusters []*types.IssueCluster) (bool, error) {
	fmt.Println(ui.HeaderStyle.Render("Proposed priorities"))
	for i, issue := range issues {
		if i >= 10 {
			fmt.Printf("  … and %d more\n", len(issues)-i)
			break
		}
		score := 0.0
		if issue.PriorityScore != nil {
			score = *issue.PriorityScore
		}
		fmt.Printf("  %6.2f  %s  %s\n", score,
			ui.SeverityStyle(issue.Severity).Render(fmt.Sprintf("%-8s", issue.Severity)),
			issue.Title)
	}
	if len(clusters) > 0 {
		fmt.Println(ui.HeaderStyle.Render("Clusters awaiting approval"))
		for _, c := range clusters {
			fmt.Printf("  %6.2f  %s (%d issues)\n", c.AggregatePriority, c.Theme, len(c.IssueIDs))
		}
	}
	return confirm("Approve this ranking and the listed clusters?")
}

func (interactiveApprover) ApprovePlan(cluster *types.IssueCluster, plan string) (bool, error) {
	fmt.Println(ui.HeaderStyle.Render("Proposed fix plan for " + cluster.Theme))
	fmt.Println(plan)
	return confirm("Approve this plan?")
}

func confirm(title string) (bool, error) {
	var approved bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Approve").
			Negative("Reject").
			Value(&approved),
	))
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}

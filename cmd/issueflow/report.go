package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/config"
	"github.com/chatretro/issueflow/internal/drafts"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
	"github.com/chatretro/issueflow/internal/ui"
)

// report runs outside the pipeline: draft files carry unique suffixed
// names, so no state lock is needed and a pipeline may run concurrently.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a new issue using an interactive form",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadLocalConfigWithEnv(runtimeDir())
		reporter := &drafts.Reporter{
			DraftsDir: statestore.DefaultPaths(runtimeDir()).DraftsDir,
			RepoURL:   cfg.RepoURL,
		}

		var (
			title       string
			description string
			category    string
			critical    bool
		)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Title").
					Description("Brief summary of the problem (required)").
					Placeholder("e.g., Save file corrupted after crash").
					Value(&title).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("title is required")
						}
						return nil
					}),
				huh.NewText().
					Title("Description").
					Description("What happened, and how to reproduce it").
					Value(&description),
				huh.NewSelect[string]().
					Title("Category").
					Options(
						huh.NewOption("Bug", string(types.CategoryBug)),
						huh.NewOption("Feature", string(types.CategoryFeature)),
						huh.NewOption("Improvement", string(types.CategoryImprovement)),
					).
					Value(&category),
				huh.NewConfirm().
					Title("Is this causing data loss or crashes right now?").
					Value(&critical),
			),
		)
		if err := form.Run(); err != nil {
			if err == huh.ErrUserAborted {
				fmt.Println("Cancelled.")
				return nil
			}
			return err
		}

		var severity types.Severity
		if critical {
			severity = types.SeverityCritical
		}
		context := map[string]any{}
		if cfg.Reporter != "" {
			context["reporter"] = cfg.Reporter
		}

		issue, err := reporter.SaveDraft(title, description, types.Category(category), severity, context)
		if err != nil {
			return err
		}
		fmt.Printf("%s Draft %s saved; it enters the pipeline on the next triage run.\n",
			ui.GoodStyle.Render("✓"), issue.ID)
		if reporter.RepoURL != "" {
			fmt.Println("File it upstream:", reporter.IssueURL(title, description, []string{category}))
		}
		return nil
	},
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List pending draft reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter := &drafts.Reporter{DraftsDir: statestore.DefaultPaths(runtimeDir()).DraftsDir}
		pending, err := reporter.PendingDrafts()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending drafts.")
			return nil
		}
		fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("%-14s %-20s %s", "ID", "CREATED", "TITLE")))
		for _, issue := range pending {
			fmt.Printf("%-14s %-20s %s\n", issue.ID, issue.Created.Format("2006-01-02 15:04:05"), issue.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd, draftsCmd)
}

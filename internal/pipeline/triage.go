package pipeline

import (
	"context"
	"fmt"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/drafts"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/types"
)

// TriageResult summarizes one triage run.
type TriageResult struct {
	Imported []string
	Triaged  []string
}

// triageItem is what the triage agent sees per draft: the raw report plus
// the id to key its reply by.
type triageItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// RunTriage imports loose draft artifacts, sends every draft issue to the
// triage agent, merges the sanitized fields, and advances matched issues
// to triaged. A failed agent run leaves all issues unchanged.
func (o *Orchestrator) RunTriage(ctx context.Context) (*TriageResult, error) {
	result := &TriageResult{}

	importer := &drafts.Importer{Store: o.store}
	imported, err := importer.ImportAll()
	if err != nil {
		return nil, fmt.Errorf("import drafts: %w", err)
	}
	for _, issue := range imported {
		result.Imported = append(result.Imported, issue.ID)
	}

	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	pending := state.IssuesByStatus(types.StatusDraft)
	if len(pending) == 0 {
		return result, nil
	}

	items := make([]triageItem, 0, len(pending))
	for _, issue := range pending {
		items = append(items, triageItem{
			ID:          issue.ID,
			Title:       issue.Title,
			Description: issue.Description,
			Category:    string(issue.Category),
		})
	}
	payload, err := taskContext(map[string]any{"issues": items})
	if err != nil {
		return nil, err
	}

	res, err := o.invoke(ctx, prompts.Triage, payload, false, "issues")
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		return nil, fmt.Errorf("triage agent produced no structured output")
	}
	var reply triageReply
	if err := decodeReply(res.Parsed, &reply); err != nil {
		return nil, err
	}

	var published []*types.Issue
	err = o.store.Mutate(func(state *types.IssueState) error {
		for _, patch := range reply.Issues {
			issue, ok := state.Issues[patch.ID]
			if !ok {
				debug.Warnf("triage reply references unknown issue %s; skipped", patch.ID)
				continue
			}
			if issue.Status != types.StatusDraft {
				continue
			}
			patch.apply(issue)
			if err := issue.Transition(types.StatusTriaged); err != nil {
				return err
			}
			result.Triaged = append(result.Triaged, issue.ID)
			published = append(published, issue)
		}
		now := o.now()
		state.LastTriageRun = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Published files are a projection of committed state, written after
	// the save so a failed save publishes nothing.
	for _, issue := range published {
		if _, err := o.store.PublishIssue(issue); err != nil {
			debug.Warnf("publish issue %s: %v", issue.ID, err)
		}
	}

	fmt.Fprintf(o.out, "Triaged %d of %d draft issues.\n", len(result.Triaged), len(pending))
	return result, nil
}

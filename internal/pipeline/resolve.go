package pipeline

import (
	"context"
	"fmt"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
)

// ResolveResult summarizes the resolution of one cluster.
type ResolveResult struct {
	ClusterID string
	// ResolvedIssues lists the member ids that reached resolved.
	ResolvedIssues []string
	// PlanRejected means the human declined the proposed fix plan. The
	// cluster stays approved and its members prioritized for a later retry.
	PlanRejected bool
	Notes        string
}

// resolveItem is what the resolution agent sees per member issue.
type resolveItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Severity      string   `json:"severity,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`
}

// RunResolution sends one approved cluster to the resolution agent.
//
// The agent either implements the fix directly or proposes a plan; a plan
// blocks on the second human gate and, when approved, the agent is
// re-invoked with an explicit proceed directive. On success every member
// issue and the cluster transition to resolved, notes are recorded, the
// changelog gains an entry per member, and the published files are
// removed.
//
// An unknown cluster id is fatal to the operation: it indicates a
// programming or data-integrity bug, not an expected runtime condition.
func (o *Orchestrator) RunResolution(ctx context.Context, clusterID string) (*ResolveResult, error) {
	result := &ResolveResult{ClusterID: clusterID}

	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	cluster, ok := state.Clusters[clusterID]
	if !ok {
		return nil, fmt.Errorf("cluster %s: %w", clusterID, statestore.ErrNotFound)
	}
	if cluster.Status != types.ClusterApproved {
		return nil, fmt.Errorf("cluster %s is %s, not approved", clusterID, cluster.Status)
	}

	members := state.MemberIssues(cluster)
	items := make([]resolveItem, 0, len(members))
	for _, issue := range members {
		items = append(items, resolveItem{
			ID:            issue.ID,
			Title:         issue.Title,
			Description:   issue.Description,
			Severity:      string(issue.Severity),
			AffectedFiles: issue.AffectedFiles,
		})
	}
	payload, err := taskContext(map[string]any{
		"cluster": map[string]any{
			"id":                  cluster.ID,
			"theme":               cluster.Theme,
			"resolution_strategy": cluster.ResolutionStrategy,
			"affected_files":      cluster.AffectedFiles,
		},
		"issues": items,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := o.resolveOutcome(ctx, payload, false)
	if err != nil {
		return nil, err
	}

	if outcome.Action == actionNeedsApproval {
		approved, err := o.approver.ApprovePlan(cluster, outcome.Plan)
		if err != nil {
			return nil, fmt.Errorf("resolution gate: %w", err)
		}
		if !approved {
			debug.Logf("cluster %s: fix plan rejected; left for retry", clusterID)
			result.PlanRejected = true
			return result, nil
		}
		outcome, err = o.resolveOutcome(ctx, payload, true)
		if err != nil {
			return nil, err
		}
		if outcome.Action != actionImplemented {
			return nil, fmt.Errorf("cluster %s: agent did not implement after plan approval", clusterID)
		}
	}

	notes := outcome.ResolutionNotes
	if notes == "" {
		notes = "Resolved: " + cluster.Theme
	}
	resolvedBy := outcome.Commit
	if resolvedBy == "" {
		resolvedBy = "agent"
	}

	err = o.store.Mutate(func(state *types.IssueState) error {
		cluster, ok := state.Clusters[clusterID]
		if !ok {
			return fmt.Errorf("cluster %s: %w", clusterID, statestore.ErrNotFound)
		}
		for _, issue := range state.MemberIssues(cluster) {
			if err := issue.Transition(types.StatusResolved); err != nil {
				return err
			}
			issue.ResolutionNotes = notes
			issue.ResolvedBy = resolvedBy
			result.ResolvedIssues = append(result.ResolvedIssues, issue.ID)
		}
		cluster.MergeAffectedFiles(outcome.FilesChanged)
		cluster.Status = types.ClusterResolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, issueID := range result.ResolvedIssues {
		if err := o.store.AppendChangelog(issueID, notes); err != nil {
			debug.Warnf("changelog entry for %s: %v", issueID, err)
		}
		if err := o.store.UnpublishIssue(issueID); err != nil {
			debug.Warnf("unpublish %s: %v", issueID, err)
		}
	}

	result.Notes = notes
	fmt.Fprintf(o.out, "Resolved cluster %s (%d issues).\n", clusterID, len(result.ResolvedIssues))
	return result, nil
}

// resolveOutcome runs the resolution agent once and decodes its verdict.
func (o *Orchestrator) resolveOutcome(ctx context.Context, payload string, approved bool) (*resolutionOutcome, error) {
	res, err := o.invoke(ctx, prompts.Resolution, payload, approved, "action")
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		return nil, fmt.Errorf("resolution agent produced no structured output")
	}
	var outcome resolutionOutcome
	if err := decodeReply(res.Parsed, &outcome); err != nil {
		return nil, err
	}
	if err := outcome.validate(); err != nil {
		return nil, err
	}
	return &outcome, nil
}

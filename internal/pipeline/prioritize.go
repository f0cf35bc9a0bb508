package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/score"
	"github.com/chatretro/issueflow/internal/types"
)

// errGateRejected aborts the prioritization mutation without saving it.
var errGateRejected = errors.New("prioritization gate rejected")

// PrioritizeResult summarizes one prioritization run.
type PrioritizeResult struct {
	Prioritized []string
	// Rejected means the human gate declined the ranking. Nothing from this
	// run was committed.
	Rejected bool
}

// priorityItem is what the prioritization agent sees per issue, including
// the locally computed score where the inputs allow one.
type priorityItem struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Severity      string    `json:"severity,omitempty"`
	Frequency     int       `json:"frequency"`
	FixComplexity string    `json:"fix_complexity,omitempty"`
	Created       time.Time `json:"created"`
	ClusterID     string    `json:"cluster_id,omitempty"`
	PriorityScore *float64  `json:"priority_score,omitempty"`
}

// RunPrioritization scores all triaged and clustered issues, updates
// cluster aggregates, and blocks on the human gate. The gate sits inside
// the mutation cycle, before the save: a rejection commits nothing.
//
// The agent may fill in missing severity or complexity and may propose
// scores, but wherever the inputs are known the local formula is the
// ground truth and overrides the proposal.
func (o *Orchestrator) RunPrioritization(ctx context.Context) (*PrioritizeResult, error) {
	result := &PrioritizeResult{}

	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	candidates := state.IssuesByStatus(types.StatusTriaged, types.StatusClustered)
	if len(candidates) == 0 {
		return result, nil
	}

	now := o.now()
	items := make([]priorityItem, 0, len(candidates))
	for _, issue := range candidates {
		item := priorityItem{
			ID:            issue.ID,
			Title:         issue.Title,
			Severity:      string(issue.Severity),
			Frequency:     issue.Frequency,
			FixComplexity: string(issue.FixComplexity),
			Created:       issue.Created,
			ClusterID:     issue.ClusterID,
		}
		if score.Computable(issue) {
			p := score.Issue(issue, now)
			item.PriorityScore = &p
		}
		items = append(items, item)
	}
	payload, err := taskContext(map[string]any{
		"issues":   items,
		"clusters": state.Clusters,
	})
	if err != nil {
		return nil, err
	}

	res, err := o.invoke(ctx, prompts.Prioritization, payload, false, "issues")
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		return nil, fmt.Errorf("prioritization agent produced no structured output")
	}
	var reply priorityReply
	if err := decodeReply(res.Parsed, &reply); err != nil {
		return nil, err
	}
	patches := make(map[string]priorityPatch, len(reply.Issues))
	for _, p := range reply.Issues {
		patches[p.ID] = p
	}

	err = o.store.Mutate(func(state *types.IssueState) error {
		for _, issue := range state.IssuesByStatus(types.StatusTriaged, types.StatusClustered) {
			o.prioritizeIssue(issue, patches[issue.ID], now)
			result.Prioritized = append(result.Prioritized, issue.ID)
		}
		for _, cluster := range state.Clusters {
			if agg := score.Aggregate(state.MemberIssues(cluster)); agg > cluster.AggregatePriority {
				cluster.AggregatePriority = agg
			}
		}
		ts := now
		state.LastPrioritizeRun = &ts

		ranked := state.IssuesByStatus(types.StatusPrioritized)
		pending := state.ClustersByStatus(types.ClusterPending)
		approved, err := o.approver.ApprovePriorities(ranked, pending)
		if err != nil {
			return fmt.Errorf("prioritization gate: %w", err)
		}
		if !approved {
			return errGateRejected
		}
		// Gate approval covers the surfaced clusters: they move to approved
		// so the resolution stage picks them up.
		for _, cluster := range pending {
			cluster.Status = types.ClusterApproved
		}
		return nil
	})
	if errors.Is(err, errGateRejected) {
		result.Prioritized = nil
		result.Rejected = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(o.out, "Prioritized %d issues.\n", len(result.Prioritized))
	return result, nil
}

// prioritizeIssue merges one patch, computes the score, and advances the
// issue. The agent's proposed score is used only when the local formula
// has nothing to work with.
func (o *Orchestrator) prioritizeIssue(issue *types.Issue, patch priorityPatch, now time.Time) {
	if patch.Severity != nil {
		if sev := types.Severity(*patch.Severity); sev.IsValid() {
			issue.Severity = sev
		} else {
			debug.Warnf("issue %s: dropping invalid severity %q from prioritization reply", issue.ID, *patch.Severity)
		}
	}
	if patch.FixComplexity != nil {
		if fc := types.Complexity(*patch.FixComplexity); fc.IsValid() {
			issue.FixComplexity = fc
		} else {
			debug.Warnf("issue %s: dropping invalid fix complexity %q from prioritization reply", issue.ID, *patch.FixComplexity)
		}
	}

	var p float64
	switch {
	case score.Computable(issue):
		p = score.Issue(issue, now)
	case patch.PriorityScore != nil:
		p = *patch.PriorityScore
		debug.Logf("issue %s: keeping agent-proposed score %.2f (inputs incomplete)", issue.ID, p)
	}
	if err := issue.Transition(types.StatusPrioritized); err != nil {
		debug.Warnf("issue %s: %v", issue.ID, err)
		return
	}
	issue.PriorityScore = &p
}

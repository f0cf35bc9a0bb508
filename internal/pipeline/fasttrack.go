package pipeline

import (
	"context"
	"fmt"

	"github.com/chatretro/issueflow/internal/score"
	"github.com/chatretro/issueflow/internal/types"
)

// FastTrackResult summarizes the critical-severity interrupt.
type FastTrackResult struct {
	// Resolved lists the issue ids resolved through the fast-track.
	Resolved []string
	Failures []FastTrackFailure
}

// FastTrack pulls every critical triaged issue out of the normal queue:
// each gets a synthesized singleton cluster, already approved and pinned
// to at least the top of the priority scale, and resolution runs for it
// immediately, bypassing clustering and prioritization. Failures are
// collected per issue and never abort the remaining pipeline.
func (o *Orchestrator) FastTrack(ctx context.Context) (*FastTrackResult, error) {
	result := &FastTrackResult{}

	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	var criticalIDs []string
	for _, issue := range state.IssuesByStatus(types.StatusTriaged) {
		if issue.Severity == types.SeverityCritical {
			criticalIDs = append(criticalIDs, issue.ID)
		}
	}
	if len(criticalIDs) == 0 {
		return result, nil
	}

	for _, issueID := range criticalIDs {
		clusterID, err := o.fastTrackOne(issueID)
		if err != nil {
			result.Failures = append(result.Failures, FastTrackFailure{IssueID: issueID, Err: err})
			continue
		}

		res, err := o.RunResolution(ctx, clusterID)
		switch {
		case err != nil:
			result.Failures = append(result.Failures, FastTrackFailure{
				IssueID:   issueID,
				ClusterID: clusterID,
				Err:       err,
			})
		case res.PlanRejected:
			result.Failures = append(result.Failures, FastTrackFailure{
				IssueID:   issueID,
				ClusterID: clusterID,
				Err:       fmt.Errorf("fix plan rejected"),
			})
		default:
			result.Resolved = append(result.Resolved, issueID)
		}
	}

	fmt.Fprintf(o.out, "Fast-tracked %d critical issues (%d failed).\n",
		len(result.Resolved), len(result.Failures))
	return result, nil
}

// fastTrackOne commits the singleton cluster and the issue's jump to
// prioritized in one save.
func (o *Orchestrator) fastTrackOne(issueID string) (string, error) {
	var clusterID string
	err := o.store.Mutate(func(state *types.IssueState) error {
		issue, ok := state.Issues[issueID]
		if !ok {
			return fmt.Errorf("issue %s vanished before fast-track", issueID)
		}

		p := score.Issue(issue, o.now())
		issue.PriorityScore = &p
		if err := issue.Transition(types.StatusPrioritized); err != nil {
			return err
		}

		cluster := types.NewCluster("critical: " + issue.Title)
		cluster.Status = types.ClusterApproved
		cluster.AddIssue(issue.ID)
		cluster.PrimaryCategory = issue.Category
		cluster.AggregateSeverity = types.SeverityCritical
		cluster.MergeAffectedFiles(issue.AffectedFiles)
		// Pinned to the top of the scale; keeps the cluster ahead of
		// everything scored through the normal path.
		cluster.AggregatePriority = score.MaxPriority
		if p > cluster.AggregatePriority {
			cluster.AggregatePriority = p
		}

		issue.ClusterID = cluster.ID
		state.Clusters[cluster.ID] = cluster
		clusterID = cluster.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return clusterID, nil
}

package pipeline

import (
	"fmt"

	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
)

// Manual operations invoked from the CLI rather than by a pipeline run.
// Unknown ids are fatal, wrapped around statestore.ErrNotFound.

// ApproveCluster marks a pending cluster approved for resolution.
func (o *Orchestrator) ApproveCluster(clusterID string) error {
	return o.store.Mutate(func(state *types.IssueState) error {
		cluster, ok := state.Clusters[clusterID]
		if !ok {
			return fmt.Errorf("cluster %s: %w", clusterID, statestore.ErrNotFound)
		}
		if !cluster.Status.CanTransition(types.ClusterApproved) {
			return fmt.Errorf("cluster %s is %s and cannot be approved", clusterID, cluster.Status)
		}
		cluster.Status = types.ClusterApproved
		return nil
	})
}

// DeferIssue parks an active issue. Deferred issues re-enter the pipeline
// through a later manual transition back to triaged.
func (o *Orchestrator) DeferIssue(issueID string) error {
	return o.transitionIssue(issueID, types.StatusDeferred)
}

// WontFixIssue closes an issue without resolution.
func (o *Orchestrator) WontFixIssue(issueID string) error {
	return o.transitionIssue(issueID, types.StatusWontFix)
}

func (o *Orchestrator) transitionIssue(issueID string, to types.Status) error {
	return o.store.Mutate(func(state *types.IssueState) error {
		issue, ok := state.Issues[issueID]
		if !ok {
			return fmt.Errorf("issue %s: %w", issueID, statestore.ErrNotFound)
		}
		if err := issue.Transition(to); err != nil {
			return err
		}
		// Leaving the active lifecycle invalidates any assigned priority.
		issue.PriorityScore = nil
		return nil
	})
}

// ListIssues returns issues filtered by status, or all issues when no
// statuses are given, sorted by creation time.
func (o *Orchestrator) ListIssues(statuses ...types.Status) ([]*types.Issue, error) {
	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = []types.Status{
			types.StatusDraft, types.StatusTriaged, types.StatusClustered,
			types.StatusPrioritized, types.StatusInProgress, types.StatusResolved,
			types.StatusWontFix, types.StatusDeferred,
		}
	}
	return state.IssuesByStatus(statuses...), nil
}

// ListClusters returns all clusters sorted by descending aggregate
// priority.
func (o *Orchestrator) ListClusters() ([]*types.IssueCluster, error) {
	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	var out []*types.IssueCluster
	for _, status := range []types.ClusterStatus{
		types.ClusterPending, types.ClusterApproved,
		types.ClusterInProgress, types.ClusterResolved,
	} {
		out = append(out, state.ClustersByStatus(status)...)
	}
	return out, nil
}

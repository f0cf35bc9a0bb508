package pipeline

import (
	"context"
	"fmt"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/types"
)

// ClusterResult summarizes one clustering run.
type ClusterResult struct {
	// Clusters lists newly created cluster ids.
	Clusters []string
	// Clustered lists issue ids that joined a cluster.
	Clustered []string
}

// clusterItem is what the clustering agent sees per triaged issue.
type clusterItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`
	Severity      string   `json:"severity,omitempty"`
}

// RunClustering sends all triaged issues to the clustering agent and
// creates clusters from its reply. Issues the agent leaves out stay
// triaged; singleton and unclustered outcomes are both valid.
func (o *Orchestrator) RunClustering(ctx context.Context) (*ClusterResult, error) {
	result := &ClusterResult{}

	state, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	triaged := state.IssuesByStatus(types.StatusTriaged)
	if len(triaged) == 0 {
		return result, nil
	}

	items := make([]clusterItem, 0, len(triaged))
	for _, issue := range triaged {
		items = append(items, clusterItem{
			ID:            issue.ID,
			Title:         issue.Title,
			Category:      string(issue.Category),
			Tags:          issue.Tags,
			AffectedFiles: issue.AffectedFiles,
			Severity:      string(issue.Severity),
		})
	}
	payload, err := taskContext(map[string]any{
		"issues":               items,
		"similarity_threshold": state.ClusterThreshold,
	})
	if err != nil {
		return nil, err
	}

	res, err := o.invoke(ctx, prompts.Clustering, payload, false, "clusters")
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		return nil, fmt.Errorf("clustering agent produced no structured output")
	}
	var reply clusterReply
	if err := decodeReply(res.Parsed, &reply); err != nil {
		return nil, err
	}

	err = o.store.Mutate(func(state *types.IssueState) error {
		for _, def := range reply.Clusters {
			o.applyClusterDef(state, def, result)
		}
		for _, a := range reply.Assignments {
			o.applyAssignment(state, a, result)
		}
		now := o.now()
		state.LastClusterRun = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(o.out, "Created %d clusters covering %d issues.\n",
		len(result.Clusters), len(result.Clustered))
	return result, nil
}

// applyClusterDef creates one cluster from the agent's definition. Members
// that are unknown or not triaged are dropped; a def with no usable
// members creates nothing.
func (o *Orchestrator) applyClusterDef(state *types.IssueState, def clusterDef, result *ClusterResult) {
	var members []*types.Issue
	for _, id := range def.members() {
		issue, ok := state.Issues[id]
		if !ok {
			debug.Warnf("cluster %q references unknown issue %s; dropped", def.Theme, id)
			continue
		}
		if issue.Status != types.StatusTriaged {
			debug.Warnf("cluster %q references issue %s in status %s; dropped", def.Theme, id, issue.Status)
			continue
		}
		members = append(members, issue)
	}
	if len(members) == 0 {
		return
	}

	cluster := types.NewCluster(def.Theme)
	if def.PrimaryCategory != nil && *def.PrimaryCategory != "" {
		cluster.PrimaryCategory = types.Category(*def.PrimaryCategory)
	}
	if def.AggregateSeverity != nil {
		if sev := types.Severity(*def.AggregateSeverity); sev.IsValid() {
			cluster.AggregateSeverity = sev
		} else {
			debug.Warnf("cluster %q: dropping invalid aggregate severity %q", def.Theme, *def.AggregateSeverity)
		}
	}
	if def.ResolutionStrategy != nil {
		cluster.ResolutionStrategy = *def.ResolutionStrategy
	}

	for _, issue := range members {
		cluster.AddIssue(issue.ID)
		cluster.MergeAffectedFiles(issue.AffectedFiles)
		issue.ClusterID = cluster.ID
		if sim, ok := def.Similarity[issue.ID]; ok {
			s := sim
			issue.SimilarityScore = &s
		}
		if err := issue.Transition(types.StatusClustered); err != nil {
			debug.Warnf("cluster %q: %v", def.Theme, err)
			continue
		}
		result.Clustered = append(result.Clustered, issue.ID)
	}
	state.Clusters[cluster.ID] = cluster
	result.Clusters = append(result.Clusters, cluster.ID)
}

// applyAssignment adds one issue to an existing cluster.
func (o *Orchestrator) applyAssignment(state *types.IssueState, a issueAssignment, result *ClusterResult) {
	issue, ok := state.Issues[a.issue()]
	if !ok {
		debug.Warnf("assignment references unknown issue %s; dropped", a.issue())
		return
	}
	cluster, ok := state.Clusters[a.ClusterID]
	if !ok {
		debug.Warnf("assignment for issue %s references unknown cluster %s; dropped", issue.ID, a.ClusterID)
		return
	}
	if issue.Status != types.StatusTriaged {
		return
	}

	cluster.AddIssue(issue.ID)
	cluster.MergeAffectedFiles(issue.AffectedFiles)
	issue.ClusterID = cluster.ID
	issue.SimilarityScore = a.SimilarityScore
	if err := issue.Transition(types.StatusClustered); err != nil {
		debug.Warnf("assignment for issue %s: %v", issue.ID, err)
		return
	}
	result.Clustered = append(result.Clustered, issue.ID)
}

package types

import (
	"fmt"
	"sort"
	"time"
)

// CurrentSchemaVersion is stamped on every saved state file. Older files
// are migrated on load (see statestore).
const CurrentSchemaVersion = 2

// DefaultClusterThreshold is the file-overlap ratio above which the
// clustering agent is asked to group issues.
const DefaultClusterThreshold = 0.7

// IssueState is the aggregate root: every issue and cluster the system
// knows about, plus pipeline bookkeeping. It is only ever mutated through
// a full load → mutate → save cycle.
type IssueState struct {
	SchemaVersion int `json:"schema_version"`

	Issues   map[string]*Issue        `json:"issues"`
	Clusters map[string]*IssueCluster `json:"clusters"`

	LastTriageRun     *time.Time `json:"last_triage_run,omitempty"`
	LastClusterRun    *time.Time `json:"last_cluster_run,omitempty"`
	LastPrioritizeRun *time.Time `json:"last_prioritize_run,omitempty"`

	ClusterThreshold float64 `json:"cluster_threshold"`
}

// NewState returns an empty state at the current schema version.
func NewState() *IssueState {
	return &IssueState{
		SchemaVersion:    CurrentSchemaVersion,
		Issues:           map[string]*Issue{},
		Clusters:         map[string]*IssueCluster{},
		ClusterThreshold: DefaultClusterThreshold,
	}
}

// SetDefaults normalizes a freshly unmarshaled state.
func (s *IssueState) SetDefaults() {
	if s.Issues == nil {
		s.Issues = map[string]*Issue{}
	}
	if s.Clusters == nil {
		s.Clusters = map[string]*IssueCluster{}
	}
	if s.ClusterThreshold == 0 {
		s.ClusterThreshold = DefaultClusterThreshold
	}
	for _, issue := range s.Issues {
		issue.SetDefaults()
	}
	for _, cluster := range s.Clusters {
		cluster.SetDefaults()
	}
}

// Validate checks every entity and cross-entity references.
func (s *IssueState) Validate() error {
	for id, issue := range s.Issues {
		if issue.ID != id {
			return fmt.Errorf("issue map key %q does not match issue id %q", id, issue.ID)
		}
		if err := issue.Validate(); err != nil {
			return err
		}
	}
	for id, cluster := range s.Clusters {
		if cluster.ID != id {
			return fmt.Errorf("cluster map key %q does not match cluster id %q", id, cluster.ID)
		}
		if err := cluster.Validate(); err != nil {
			return err
		}
		// Members must exist in the same snapshot.
		for _, issueID := range cluster.IssueIDs {
			if _, ok := s.Issues[issueID]; !ok {
				return fmt.Errorf("cluster %s references unknown issue %s", id, issueID)
			}
		}
	}
	return nil
}

// IssuesByStatus returns issues with the given status, sorted by creation
// time for deterministic processing order.
func (s *IssueState) IssuesByStatus(statuses ...Status) []*Issue {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*Issue
	for _, issue := range s.Issues {
		if want[issue.Status] {
			out = append(out, issue)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Created.Equal(out[b].Created) {
			return out[a].ID < out[b].ID
		}
		return out[a].Created.Before(out[b].Created)
	})
	return out
}

// ClustersByStatus returns clusters with the given status, sorted by
// descending aggregate priority.
func (s *IssueState) ClustersByStatus(status ClusterStatus) []*IssueCluster {
	var out []*IssueCluster
	for _, c := range s.Clusters {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].AggregatePriority == out[b].AggregatePriority {
			return out[a].ID < out[b].ID
		}
		return out[a].AggregatePriority > out[b].AggregatePriority
	})
	return out
}

// MemberIssues resolves a cluster's member IDs against the snapshot,
// skipping dangling references.
func (s *IssueState) MemberIssues(c *IssueCluster) []*Issue {
	out := make([]*Issue, 0, len(c.IssueIDs))
	for _, id := range c.IssueIDs {
		if issue, ok := s.Issues[id]; ok {
			out = append(out, issue)
		}
	}
	return out
}

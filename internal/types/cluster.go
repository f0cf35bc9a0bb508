package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/chatretro/issueflow/internal/idgen"
)

// IssueCluster groups related issues for batched resolution.
type IssueCluster struct {
	ID string `json:"id"`

	// Theme describes the grouping rationale in human terms.
	Theme    string   `json:"theme"`
	IssueIDs []string `json:"issue_ids,omitempty"`

	AffectedFiles   []string `json:"affected_files,omitempty"`
	PrimaryCategory Category `json:"primary_category,omitempty"`

	AggregateSeverity Severity `json:"aggregate_severity,omitempty"`
	AggregatePriority float64  `json:"aggregate_priority"`

	// ResolutionStrategy is a categorical hint from the clustering agent:
	// "single_pr" or "multiple_prs".
	ResolutionStrategy string        `json:"resolution_strategy,omitempty"`
	Status             ClusterStatus `json:"status,omitempty"`
}

// NewCluster constructs a pending cluster with a generated ID.
func NewCluster(theme string) *IssueCluster {
	return &IssueCluster{
		ID:              idgen.ClusterID(theme, time.Now(), 0),
		Theme:           theme,
		PrimaryCategory: CategoryBug,
		Status:          ClusterPending,
	}
}

// SetDefaults applies defaults for fields omitted in persisted JSON.
func (c *IssueCluster) SetDefaults() {
	if c.Status == "" {
		c.Status = ClusterPending
	}
	if c.PrimaryCategory == "" {
		c.PrimaryCategory = CategoryBug
	}
}

// Validate checks field values.
func (c *IssueCluster) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("cluster id is required")
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("cluster %s: invalid status: %s", c.ID, c.Status)
	}
	if c.AggregateSeverity != "" && !c.AggregateSeverity.IsValid() {
		return fmt.Errorf("cluster %s: invalid aggregate severity: %s", c.ID, c.AggregateSeverity)
	}
	seen := make(map[string]bool, len(c.IssueIDs))
	for _, id := range c.IssueIDs {
		if seen[id] {
			return fmt.Errorf("cluster %s: duplicate member %s", c.ID, id)
		}
		seen[id] = true
	}
	return nil
}

// AddIssue appends a member ID, ignoring duplicates.
func (c *IssueCluster) AddIssue(id string) {
	for _, existing := range c.IssueIDs {
		if existing == id {
			return
		}
	}
	c.IssueIDs = append(c.IssueIDs, id)
}

// MergeAffectedFiles unions the given files into the cluster's affected set,
// keeping the result sorted and deduplicated.
func (c *IssueCluster) MergeAffectedFiles(files []string) {
	set := make(map[string]bool, len(c.AffectedFiles)+len(files))
	for _, f := range c.AffectedFiles {
		set[f] = true
	}
	for _, f := range files {
		set[f] = true
	}
	merged := make([]string, 0, len(set))
	for f := range set {
		merged = append(merged, f)
	}
	sort.Strings(merged)
	c.AffectedFiles = merged
}

// ClusterStatus represents the approval/resolution state of a cluster.
type ClusterStatus string

// Cluster status constants
const (
	ClusterPending    ClusterStatus = "pending"
	ClusterApproved   ClusterStatus = "approved"
	ClusterInProgress ClusterStatus = "in_progress"
	ClusterResolved   ClusterStatus = "resolved"
)

// IsValid checks if the cluster status value is valid.
func (s ClusterStatus) IsValid() bool {
	switch s {
	case ClusterPending, ClusterApproved, ClusterInProgress, ClusterResolved:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to the given status is legal.
// Approval is a manual human action (or the fast-track auto-approval).
func (s ClusterStatus) CanTransition(to ClusterStatus) bool {
	if s == to {
		return true
	}
	switch s {
	case ClusterPending:
		return to == ClusterApproved
	case ClusterApproved:
		return to == ClusterInProgress || to == ClusterResolved
	case ClusterInProgress:
		return to == ClusterResolved
	}
	return false
}

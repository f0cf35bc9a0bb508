package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/types"
)

// Agent replies are merged onto typed entities through explicit patch
// structs with optional (pointer) fields, validated field-by-field before
// application. A field that fails validation is dropped with a warning;
// the rest of the patch still applies.

// triagePatch is one issue's worth of the triage agent's reply.
type triagePatch struct {
	ID            string   `json:"id"`
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category"`
	Severity      *string  `json:"severity"`
	FixComplexity *string  `json:"fix_complexity"`
	Tags          []string `json:"tags"`
	AffectedFiles []string `json:"affected_files"`
}

type triageReply struct {
	Issues []triagePatch `json:"issues"`
}

// apply merges the patch onto the issue. Sanitized text replaces the raw
// fields with the originals preserved in context.
func (p *triagePatch) apply(issue *types.Issue) {
	if p.Title != nil {
		issue.SetTitle(*p.Title)
	}
	if p.Description != nil {
		issue.SetDescription(*p.Description)
	}
	if p.Category != nil && *p.Category != "" {
		// Unknown categories are tolerated and carried through unchanged.
		issue.Category = types.Category(*p.Category)
	}
	if p.Severity != nil {
		if sev := types.Severity(*p.Severity); sev.IsValid() {
			issue.Severity = sev
		} else {
			debug.Warnf("issue %s: dropping invalid severity %q from triage reply", p.ID, *p.Severity)
		}
	}
	if p.FixComplexity != nil {
		if fc := types.Complexity(*p.FixComplexity); fc.IsValid() {
			issue.FixComplexity = fc
		} else {
			debug.Warnf("issue %s: dropping invalid fix complexity %q from triage reply", p.ID, *p.FixComplexity)
		}
	}
	if len(p.Tags) > 0 {
		issue.Tags = p.Tags
	}
	if len(p.AffectedFiles) > 0 {
		issue.AffectedFiles = p.AffectedFiles
	}
	issue.Touch()
}

// clusterDef is one proposed cluster from the clustering agent. Member ids
// arrive under either issue_ids or member_issue_ids depending on how the
// agent phrased its reply.
type clusterDef struct {
	Theme              string             `json:"theme"`
	IssueIDs           []string           `json:"issue_ids"`
	MemberIssueIDs     []string           `json:"member_issue_ids"`
	PrimaryCategory    *string            `json:"primary_category"`
	AggregateSeverity  *string            `json:"aggregate_severity"`
	ResolutionStrategy *string            `json:"resolution_strategy"`
	Similarity         map[string]float64 `json:"similarity"`
}

func (d *clusterDef) members() []string {
	if len(d.IssueIDs) > 0 {
		return d.IssueIDs
	}
	return d.MemberIssueIDs
}

// issueAssignment places one issue into an already-proposed cluster. Some
// replies use this shape instead of inlining members in the cluster.
type issueAssignment struct {
	ID              string   `json:"id"`
	IssueID         string   `json:"issue_id"`
	ClusterID       string   `json:"cluster_id"`
	SimilarityScore *float64 `json:"similarity_score"`
}

func (a *issueAssignment) issue() string {
	if a.ID != "" {
		return a.ID
	}
	return a.IssueID
}

type clusterReply struct {
	Clusters    []clusterDef      `json:"clusters"`
	Assignments []issueAssignment `json:"assignments"`
}

// priorityPatch is one issue's worth of the prioritization agent's reply.
type priorityPatch struct {
	ID            string   `json:"id"`
	Severity      *string  `json:"severity"`
	FixComplexity *string  `json:"fix_complexity"`
	PriorityScore *float64 `json:"priority_score"`
	Rationale     string   `json:"rationale"`
}

type priorityReply struct {
	Issues []priorityPatch `json:"issues"`
}

// Resolution outcome actions.
const (
	actionImplemented   = "implemented"
	actionNeedsApproval = "needs_approval"
)

// resolutionOutcome is the resolution agent's verdict for one cluster.
type resolutionOutcome struct {
	Action          string   `json:"action"`
	Plan            string   `json:"plan"`
	ResolutionNotes string   `json:"resolution_notes"`
	Commit          string   `json:"commit"`
	FilesChanged    []string `json:"files_changed"`
}

func (o *resolutionOutcome) validate() error {
	switch o.Action {
	case actionImplemented, actionNeedsApproval:
		return nil
	}
	return fmt.Errorf("unknown resolution action %q", o.Action)
}

// decodeReply parses a structured agent payload into the given reply
// shape.
func decodeReply(parsed json.RawMessage, out any) error {
	if err := json.Unmarshal(parsed, out); err != nil {
		return fmt.Errorf("decode agent reply: %w", err)
	}
	return nil
}

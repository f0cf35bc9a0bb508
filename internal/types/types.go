// Package types defines the core data structures for the issueflow pipeline.
package types

import (
	"fmt"
	"time"

	"github.com/chatretro/issueflow/internal/idgen"
)

// Issue represents one reported defect or feature request moving through
// the lifecycle: draft → triaged → clustered → prioritized → resolved.
type Issue struct {
	ID string `json:"id"`

	// Content. At draft time these hold the raw report; after triage they
	// are overwritten with sanitized text and the raw values are preserved
	// in Context under "raw_title"/"raw_description".
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Classification
	Category      Category `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`

	// Lifecycle
	Status  Status    `json:"status,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// Clustering
	ClusterID       string   `json:"cluster_id,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// Ranking. Severity is empty until triage assigns it.
	Severity      Severity   `json:"severity,omitempty"`
	Frequency     int        `json:"frequency,omitempty"` // incremented on deduplication, always >= 1
	FixComplexity Complexity `json:"fix_complexity,omitempty"`
	PriorityScore *float64   `json:"priority_score,omitempty"`

	// Resolution
	ResolutionNotes string `json:"resolution_notes,omitempty"`
	ResolvedBy      string `json:"resolved_by,omitempty"` // commit/PR reference

	// Context holds auxiliary and raw data, possibly sensitive. It is never
	// included in the public projection.
	Context map[string]any `json:"context,omitempty"`
}

// NewIssue constructs a draft issue with a generated ID and timestamps.
func NewIssue(title, description string, category Category) *Issue {
	now := time.Now()
	if category == "" {
		category = CategoryBug
	}
	return &Issue{
		ID:          idgen.IssueID(title, description, now, 0),
		Title:       title,
		Description: description,
		Category:    category,
		Status:      StatusDraft,
		Created:     now,
		Updated:     now,
		Frequency:   1,
		Context:     map[string]any{},
	}
}

// SetDefaults applies defaults for fields omitted in persisted JSON.
func (i *Issue) SetDefaults() {
	if i.Status == "" {
		i.Status = StatusDraft
	}
	if i.Category == "" {
		i.Category = CategoryBug
	}
	if i.Frequency < 1 {
		i.Frequency = 1
	}
	if i.Context == nil {
		i.Context = map[string]any{}
	}
}

// Validate checks field values and cross-field invariants.
func (i *Issue) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("issue id is required")
	}
	if i.Title == "" {
		return fmt.Errorf("issue %s: title is required", i.ID)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("issue %s: invalid status: %s", i.ID, i.Status)
	}
	if i.Severity != "" && !i.Severity.IsValid() {
		return fmt.Errorf("issue %s: invalid severity: %s", i.ID, i.Severity)
	}
	if i.FixComplexity != "" && !i.FixComplexity.IsValid() {
		return fmt.Errorf("issue %s: invalid fix complexity: %s", i.ID, i.FixComplexity)
	}
	if i.Frequency < 1 {
		return fmt.Errorf("issue %s: frequency must be >= 1 (got %d)", i.ID, i.Frequency)
	}
	// Priority is assigned by the prioritization stage (or the fast-track),
	// never earlier in the lifecycle.
	if i.PriorityScore != nil && i.Status != StatusPrioritized && i.Status != StatusResolved {
		return fmt.Errorf("issue %s: priority_score set in status %s", i.ID, i.Status)
	}
	return nil
}

// Touch bumps the updated timestamp.
func (i *Issue) Touch() {
	i.Updated = time.Now()
}

// SetTitle replaces the title with sanitized content, preserving the raw
// value in Context when it differs.
func (i *Issue) SetTitle(sanitized string) {
	if sanitized == "" || sanitized == i.Title {
		return
	}
	if i.Context == nil {
		i.Context = map[string]any{}
	}
	i.Context["raw_title"] = i.Title
	i.Title = sanitized
}

// SetDescription replaces the description with sanitized content, preserving
// the raw value in Context when it differs.
func (i *Issue) SetDescription(sanitized string) {
	if sanitized == "" || sanitized == i.Description {
		return
	}
	if i.Context == nil {
		i.Context = map[string]any{}
	}
	i.Context["raw_description"] = i.Description
	i.Description = sanitized
}

// PublicIssue is the sanitized projection written to the published issue
// files. It deliberately has no Context field.
type PublicIssue struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      Category  `json:"category"`
	Tags          []string  `json:"tags,omitempty"`
	AffectedFiles []string  `json:"affected_files,omitempty"`
	Severity      Severity  `json:"severity,omitempty"`
	Frequency     int       `json:"frequency"`
	Created       time.Time `json:"created"`
}

// PublicView returns the sanitized projection of the issue.
func (i *Issue) PublicView() PublicIssue {
	return PublicIssue{
		ID:            i.ID,
		Title:         i.Title,
		Description:   i.Description,
		Category:      i.Category,
		Tags:          i.Tags,
		AffectedFiles: i.AffectedFiles,
		Severity:      i.Severity,
		Frequency:     i.Frequency,
		Created:       i.Created,
	}
}

// Status represents the lifecycle state of an issue.
type Status string

// Issue status constants
const (
	StatusDraft       Status = "draft"
	StatusTriaged     Status = "triaged"
	StatusClustered   Status = "clustered"
	StatusPrioritized Status = "prioritized"
	StatusInProgress  Status = "in_progress"
	StatusResolved    Status = "resolved"
	StatusWontFix     Status = "wont_fix"
	StatusDeferred    Status = "deferred"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusTriaged, StatusClustered, StatusPrioritized,
		StatusInProgress, StatusResolved, StatusWontFix, StatusDeferred:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the active lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusWontFix
}

// CanTransition reports whether moving from s to the given status is legal.
//
//	draft → triaged → clustered → prioritized → resolved
//	triaged → prioritized           (fast-track)
//	clustered → prioritized
//	any active → deferred/wont_fix  (manual)
//	deferred → triaged              (picked back up)
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	switch s {
	case StatusDraft:
		return to == StatusTriaged || to == StatusDeferred || to == StatusWontFix
	case StatusTriaged:
		// Prioritized is reachable directly via the critical fast-track
		// and via prioritization of never-clustered issues.
		return to == StatusClustered || to == StatusPrioritized ||
			to == StatusDeferred || to == StatusWontFix
	case StatusClustered:
		return to == StatusPrioritized || to == StatusDeferred || to == StatusWontFix
	case StatusPrioritized:
		return to == StatusInProgress || to == StatusResolved ||
			to == StatusDeferred || to == StatusWontFix
	case StatusInProgress:
		return to == StatusResolved
	case StatusDeferred:
		return to == StatusTriaged
	}
	return false
}

// Transition moves the issue to a new status, enforcing legality.
func (i *Issue) Transition(to Status) error {
	if !to.IsValid() {
		return fmt.Errorf("issue %s: invalid status: %s", i.ID, to)
	}
	if !i.Status.CanTransition(to) {
		return fmt.Errorf("issue %s: illegal transition %s → %s", i.ID, i.Status, to)
	}
	i.Status = to
	i.Touch()
	return nil
}

// Severity is the impact level assigned at triage.
type Severity string

// Severity constants, ordered from most to least severe.
const (
	SeverityCritical Severity = "critical" // crashes, data loss
	SeverityHigh     Severity = "high"     // major functionality broken
	SeverityMedium   Severity = "medium"   // minor bugs, UX issues
	SeverityLow      Severity = "low"      // cosmetic, nice-to-have
)

// IsValid checks if the severity value is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Complexity is the estimated size of a fix.
type Complexity string

// Fix complexity constants
const (
	ComplexityTrivial Complexity = "trivial" // typo, config change, one-liner
	ComplexitySmall   Complexity = "small"   // single file, < 50 lines
	ComplexityMedium  Complexity = "medium"  // multiple files, < 200 lines
	ComplexityLarge   Complexity = "large"   // architectural change
)

// IsValid checks if the complexity value is valid.
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexityTrivial, ComplexitySmall, ComplexityMedium, ComplexityLarge:
		return true
	}
	return false
}

// Category classifies the kind of report.
type Category string

// Category constants. Categories are advisory: unknown values are tolerated
// on input and carried through unchanged.
const (
	CategoryBug         Category = "bug"
	CategoryFeature     Category = "feature"
	CategoryImprovement Category = "improvement"
)

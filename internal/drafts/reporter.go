// Package drafts handles the two sides of issue intake: writing draft
// artifacts (the reporter, which may run outside the pipeline process) and
// importing them into the state store exactly once (the importer).
package drafts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chatretro/issueflow/internal/types"
)

const draftPrefix = "draft_"

// Reporter creates draft artifacts in the drafts directory. Drafts may be
// written concurrently with a running pipeline; the filename carries the
// creation time plus the issue id as a unique suffix, so writers never
// collide.
type Reporter struct {
	DraftsDir string
	RepoURL   string // for pre-filled GitHub issue links, optional
}

// SaveDraft writes a new draft issue artifact and returns the issue.
func (r *Reporter) SaveDraft(title, description string, category types.Category, severity types.Severity, context map[string]any) (*types.Issue, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("draft title is required")
	}

	issue := types.NewIssue(title, description, category)
	if severity != "" {
		// Known-critical reports (e.g. data corruption detected by the
		// reporter itself) carry a severity so the pipeline can fast-track
		// them after triage confirms it.
		issue.Severity = severity
	}
	for k, v := range context {
		issue.Context[k] = v
	}

	if err := os.MkdirAll(r.DraftsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create drafts directory: %w", err)
	}

	data, err := json.MarshalIndent(issue, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}

	path := filepath.Join(r.DraftsDir, DraftFilename(issue))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write draft file: %w", err)
	}
	return issue, nil
}

// DraftFilename encodes the creation time and issue id:
// draft_20260827_153000_ab12cd34ef56.json
func DraftFilename(issue *types.Issue) string {
	return fmt.Sprintf("%s%s_%s.json", draftPrefix, issue.Created.Format("20060102_150405"), issue.ID)
}

// PendingDrafts returns the parseable draft issues currently on disk,
// oldest first. Unparseable files are skipped, not deleted; the importer
// applies the same tolerance.
func (r *Reporter) PendingDrafts() ([]*types.Issue, error) {
	paths, err := listDraftFiles(r.DraftsDir)
	if err != nil {
		return nil, err
	}
	var out []*types.Issue
	for _, path := range paths {
		issue, err := readDraft(path)
		if err != nil {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

// IssueURL builds a GitHub new-issue URL with pre-filled title, body, and
// labels.
func (r *Reporter) IssueURL(title, body string, labels []string) string {
	params := url.Values{}
	params.Set("title", title)
	params.Set("body", body)
	if len(labels) > 0 {
		params.Set("labels", strings.Join(labels, ","))
	}
	return r.RepoURL + "/issues/new?" + params.Encode()
}

func listDraftFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read drafts directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, draftPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	// Filenames start with the creation timestamp, so lexical order is
	// chronological order.
	sort.Strings(paths)
	return paths, nil
}

func readDraft(path string) (*types.Issue, error) {
	data, err := os.ReadFile(path) // #nosec G304 - enumerated from the drafts dir
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var issue types.Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("parse draft %s: %w", filepath.Base(path), err)
	}
	issue.SetDefaults()
	if issue.ID == "" || issue.Title == "" {
		return nil, fmt.Errorf("draft %s: missing id or title", filepath.Base(path))
	}
	return &issue, nil
}

package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chatretro/issueflow/internal/types"
)

// PublishIssue writes the sanitized projection of a non-draft issue into
// the issues directory. The raw context bag never reaches this file.
func (s *Store) PublishIssue(issue *types.Issue) (string, error) {
	if issue.Status == types.StatusDraft {
		return "", fmt.Errorf("issue %s: cannot publish a draft", issue.ID)
	}

	data, err := json.MarshalIndent(issue.PublicView(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal public issue: %w", err)
	}

	path := s.publicIssuePath(issue.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write public issue file: %w", err)
	}
	return path, nil
}

// UnpublishIssue removes the published file for an issue, typically after
// resolution. Missing files are fine.
func (s *Store) UnpublishIssue(issueID string) error {
	err := os.Remove(s.publicIssuePath(issueID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove public issue file: %w", err)
	}
	return nil
}

func (s *Store) publicIssuePath(issueID string) string {
	return filepath.Join(s.paths.IssuesDir, "issue_"+issueID+".json")
}

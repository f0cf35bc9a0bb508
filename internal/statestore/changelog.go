package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const changelogHeader = "# Issue Changelog"

// AppendChangelog records a resolution in the human-readable changelog.
// Entries are grouped by calendar day; repeated resolutions on the same
// day append to the same day section.
func (s *Store) AppendChangelog(issueID, notes string) error {
	return s.appendChangelogAt(issueID, notes, time.Now())
}

func (s *Store) appendChangelogAt(issueID, notes string, now time.Time) error {
	path := filepath.Join(s.paths.IssuesDir, "CHANGELOG.md")
	day := now.Format("2006-01-02")
	entry := fmt.Sprintf("- **%s**: %s\n", issueID, notes)
	heading := "## " + day + "\n"

	existing, err := os.ReadFile(path) // #nosec G304 - path from injected config
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read changelog: %w", err)
	}

	var content string
	switch {
	case len(existing) == 0:
		content = changelogHeader + "\n\n" + heading + entry
	case strings.Contains(string(existing), heading):
		// Append under the existing day section, directly after its heading.
		parts := strings.SplitN(string(existing), heading, 2)
		content = parts[0] + heading + entry + parts[1]
	default:
		// New day: insert a fresh section right after the title line so the
		// newest day stays on top.
		lines := strings.SplitN(string(existing), "\n", 2)
		rest := ""
		if len(lines) > 1 {
			rest = lines[1]
		}
		content = lines[0] + "\n\n" + heading + entry + rest
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return nil
}

// ChangelogPath returns the changelog location inside the issues dir.
func (s *Store) ChangelogPath() string {
	return filepath.Join(s.paths.IssuesDir, "CHANGELOG.md")
}

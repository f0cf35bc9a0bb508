package drafts

import (
	"fmt"
	"os"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
)

// Importer moves draft artifacts into the state store exactly once.
//
// Crash safety: the draft file is deleted only after the state save
// succeeds. If the process dies between commit and deletion, the artifact
// survives and the next import detects the already-known id and skips the
// insert, so a crash can never double-import, only leave a stale file
// that the next run cleans up.
type Importer struct {
	Store *statestore.Store
}

// ImportDraft imports a single draft artifact: parse → insert as draft →
// save → delete the source file.
func (imp *Importer) ImportDraft(path string) (*types.Issue, error) {
	issue, err := readDraft(path)
	if err != nil {
		return nil, err
	}
	// Whatever the artifact claims, an imported issue starts as a draft.
	issue.Status = types.StatusDraft

	inserted := false
	err = imp.Store.Mutate(func(state *types.IssueState) error {
		if _, exists := state.Issues[issue.ID]; exists {
			return nil
		}
		state.Issues[issue.ID] = issue
		inserted = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit draft %s: %w", issue.ID, err)
	}

	// Deletion failures are tolerable: the next run will skip the id.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		debug.Warnf("imported draft %s but could not remove %s: %v", issue.ID, path, err)
	}

	if !inserted {
		debug.Logf("draft %s already known; skipped re-import", issue.ID)
		return nil, nil
	}
	return issue, nil
}

// ImportAll scans the drafts directory and imports every pending artifact,
// deduplicating against ids already in state. Returns the newly imported
// issues. Unparseable artifacts are skipped with a warning.
func (imp *Importer) ImportAll() ([]*types.Issue, error) {
	paths, err := listDraftFiles(imp.Store.Paths().DraftsDir)
	if err != nil {
		return nil, err
	}

	var imported []*types.Issue
	for _, path := range paths {
		issue, err := imp.ImportDraft(path)
		if err != nil {
			debug.Warnf("skipping draft %s: %v", path, err)
			continue
		}
		if issue != nil {
			imported = append(imported, issue)
		}
	}
	return imported, nil
}

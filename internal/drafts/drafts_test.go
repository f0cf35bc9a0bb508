package drafts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
)

func newTestStore(t *testing.T) *statestore.Store {
	t.Helper()
	s, err := statestore.New(statestore.DefaultPaths(filepath.Join(t.TempDir(), ".issueflow")))
	require.NoError(t, err)
	return s
}

func TestSaveDraftWritesArtifact(t *testing.T) {
	store := newTestStore(t)
	r := &Reporter{DraftsDir: store.Paths().DraftsDir}

	issue, err := r.SaveDraft("Export hangs", "export never finishes on large state", types.CategoryBug, "", nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, issue.Status)
	assert.Len(t, issue.ID, 12)

	path := filepath.Join(store.Paths().DraftsDir, DraftFilename(issue))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	pending, err := r.PendingDrafts()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, issue.ID, pending[0].ID)
}

func TestSaveDraftRequiresTitle(t *testing.T) {
	r := &Reporter{DraftsDir: t.TempDir()}
	_, err := r.SaveDraft("  ", "body", types.CategoryBug, "", nil)
	assert.Error(t, err)
}

func TestSaveDraftCarriesSeverityAndContext(t *testing.T) {
	r := &Reporter{DraftsDir: t.TempDir()}
	issue, err := r.SaveDraft("State corruption detected", "corrupt backup found", types.CategoryBug,
		types.SeverityCritical, map[string]any{"has_corrupt_state": true})
	require.NoError(t, err)
	assert.Equal(t, types.SeverityCritical, issue.Severity)
	assert.Equal(t, true, issue.Context["has_corrupt_state"])
}

func TestImportAllIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	r := &Reporter{DraftsDir: store.Paths().DraftsDir}
	imp := &Importer{Store: store}

	_, err := r.SaveDraft("First", "a", types.CategoryBug, "", nil)
	require.NoError(t, err)
	_, err = r.SaveDraft("Second", "b", types.CategoryFeature, "", nil)
	require.NoError(t, err)

	first, err := imp.ImportAll()
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// Artifacts are consumed on import.
	pending, err := r.PendingDrafts()
	require.NoError(t, err)
	assert.Empty(t, pending)

	second, err := imp.ImportAll()
	require.NoError(t, err)
	assert.Empty(t, second)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, state.Issues, 2)
}

func TestImportRetryAfterFailedDeletion(t *testing.T) {
	store := newTestStore(t)
	r := &Reporter{DraftsDir: store.Paths().DraftsDir}
	imp := &Importer{Store: store}

	issue, err := r.SaveDraft("Survivor", "the file that would not die", types.CategoryBug, "", nil)
	require.NoError(t, err)
	path := filepath.Join(store.Paths().DraftsDir, DraftFilename(issue))
	artifact, err := os.ReadFile(path) // #nosec G304 - test-owned path
	require.NoError(t, err)

	imported, err := imp.ImportDraft(path)
	require.NoError(t, err)
	require.NotNil(t, imported)

	// Simulate a crash between commit and deletion: the artifact is back
	// on disk while the issue is already in state.
	require.NoError(t, os.WriteFile(path, artifact, 0o644))

	again, err := imp.ImportAll()
	require.NoError(t, err)
	assert.Empty(t, again, "retry must not re-import an already-known id")

	state, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, state.Issues, issue.ID)
	assert.Len(t, state.Issues, 1)

	// The stale artifact is cleaned up by the retry.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPendingDraftsSkipsGarbage(t *testing.T) {
	dir := t.TempDir()
	r := &Reporter{DraftsDir: dir}

	_, err := r.SaveDraft("Valid", "ok", types.CategoryBug, "", nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft_20260101_000000_zzz.json"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a draft"), 0o644))

	pending, err := r.PendingDrafts()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Valid", pending[0].Title)
}

func TestIssueURL(t *testing.T) {
	r := &Reporter{RepoURL: "https://github.com/chatretro/issueflow"}
	u := r.IssueURL("Crash on save", "details here", []string{"bug"})
	assert.Contains(t, u, "https://github.com/chatretro/issueflow/issues/new?")
	assert.Contains(t, u, "Crash+on+save")
	assert.Contains(t, u, "labels=bug")
}

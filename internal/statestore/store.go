// Package statestore owns durable persistence of the issue state: atomic
// saves, corruption recovery, schema migration, published issue files, and
// the resolution changelog.
//
// The store enforces a load → mutate → save discipline: callers never hold
// entity references across a save boundary, and concurrent processes are
// excluded with an advisory lock.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/lockfile"
	"github.com/chatretro/issueflow/internal/types"
)

// Paths centralizes the on-disk layout. It is injected at construction so
// nothing in the core depends on package-level path globals.
type Paths struct {
	StateFile string // canonical aggregate, e.g. .issueflow/state.json
	DraftsDir string // externally written draft artifacts
	IssuesDir string // published (sanitized) issue files + changelog
	LockFile  string // advisory single-writer lock
}

// DefaultPaths returns the standard layout under the given runtime dir.
func DefaultPaths(runtimeDir string) Paths {
	return Paths{
		StateFile: filepath.Join(runtimeDir, "state.json"),
		DraftsDir: filepath.Join(runtimeDir, "drafts"),
		IssuesDir: filepath.Join(runtimeDir, "issues"),
		LockFile:  filepath.Join(runtimeDir, "state.lock"),
	}
}

// Store reads and writes the persistent issue state.
type Store struct {
	paths Paths
	lock  *lockfile.Lock
}

// New creates a Store over the given layout and ensures the directories
// exist.
func New(paths Paths) (*Store, error) {
	for _, dir := range []string{filepath.Dir(paths.StateFile), paths.DraftsDir, paths.IssuesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create runtime directory: %w", err)
		}
	}
	return &Store{paths: paths}, nil
}

// Paths returns the store's on-disk layout.
func (s *Store) Paths() Paths {
	return s.paths
}

// Acquire takes the single-writer lock. Returns lockfile.ErrLocked when a
// concurrent process already holds the store.
func (s *Store) Acquire() error {
	if s.lock != nil {
		return nil
	}
	l, err := lockfile.Acquire(s.paths.LockFile)
	if err != nil {
		return err
	}
	s.lock = l
	return nil
}

// Release drops the single-writer lock if held.
func (s *Store) Release() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.Release()
	s.lock = nil
	return err
}

// Load reads the persisted aggregate.
//
// A missing file is not an error: it yields a fresh empty state. A file
// that fails to parse, migrate, or validate is treated as corruption: the
// bad bytes are preserved in a .corrupt sibling for forensics, a
// diagnostic is emitted, and a fresh state is returned. Any other I/O
// error is fatal and propagates.
func (s *Store) Load() (*types.IssueState, error) {
	data, err := os.ReadFile(s.paths.StateFile) // #nosec G304 - path from injected config
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	state, err := decodeState(data)
	if err != nil {
		return s.recoverCorrupt(err)
	}
	return state, nil
}

// decodeState parses, migrates, and validates raw state bytes.
func decodeState(data []byte) (*types.IssueState, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	version := schemaVersion(raw)
	if version < types.CurrentSchemaVersion {
		if err := migrate(raw, version); err != nil {
			return nil, fmt.Errorf("migrate state from v%d: %w", version, err)
		}
		// Round-trip through JSON so the typed unmarshal below sees the
		// migrated structure.
		migrated, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("re-encode migrated state: %w", err)
		}
		data = migrated
	}

	var state types.IssueState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	state.SetDefaults()
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("validate state: %w", err)
	}
	return &state, nil
}

// recoverCorrupt backs up the unreadable state file and resets to empty.
// Only the backup rename itself can fail hard here.
func (s *Store) recoverCorrupt(cause error) (*types.IssueState, error) {
	backup := s.paths.StateFile + ".corrupt"
	if err := os.Rename(s.paths.StateFile, backup); err != nil {
		return nil, fmt.Errorf("back up corrupt state file: %w", err)
	}
	debug.Warnf("state file is corrupt (%v); backed up to %s and reset to empty state", cause, backup)
	return types.NewState(), nil
}

// Save persists the aggregate atomically: write a temporary sibling, then
// rename over the canonical path. Readers never observe a half-written
// file; a crash mid-write leaves the previous file intact.
func (s *Store) Save(state *types.IssueState) error {
	state.SchemaVersion = types.CurrentSchemaVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.paths.StateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.paths.StateFile); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}

// Mutate runs one load → mutate → save cycle. If fn returns an error the
// state is not saved.
func (s *Store) Mutate(fn func(*types.IssueState) error) error {
	state, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.Save(state)
}

// ErrNotFound is returned for operations on unknown issue or cluster ids.
// Unknown ids indicate a programming or data-integrity bug, not an
// expected runtime condition.
var ErrNotFound = errors.New("not found")

func schemaVersion(raw map[string]any) int {
	v, ok := raw["schema_version"].(float64)
	if !ok {
		return 0
	}
	return int(v)
}

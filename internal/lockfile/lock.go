// Package lockfile provides advisory file locks used to enforce the
// single-writer model on the state store.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("state store locked by another process")

// Lock is a held advisory lock backed by a lock file.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive non-blocking lock on the given path, creating
// the file (and parent directory) if needed. Returns ErrLocked if another
// process holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304 - lock path from injected config
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	// Record the holder pid for diagnostics. Best effort.
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())

	return &Lock{path: path, file: f}, nil
}

// Release unlocks and closes the lock file. Safe to call once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := flockUnlock(l.file); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Package lock implements the advisory marker file that keeps two route
// operations from running against the same table at once.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// DefaultStaleAfter is the age past which a marker is treated as abandoned
const DefaultStaleAfter = 30 * time.Minute

// DefaultPath returns the well-known marker location in the temp directory
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "lucky-route-operation.lock")
}

// Lock is a zero-byte marker file whose modification time decides staleness
type Lock struct {
	Path       string
	StaleAfter time.Duration

	held bool
}

// New creates a lock for path. Empty values fall back to the defaults.
func New(path string, staleAfter time.Duration) *Lock {
	if path == "" {
		path = DefaultPath()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Lock{Path: path, StaleAfter: staleAfter}
}

// Acquire creates the marker. A stale marker is cleared first; a fresh one
// fails with a LockHeld error unless force is set.
func (l *Lock) Acquire(force bool) error {
	info, err := os.Stat(l.Path)
	switch {
	case err == nil:
		if time.Since(info.ModTime()) > l.StaleAfter {
			if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to clear stale lock %s: %w", l.Path, err)
			}
		} else if !force {
			return &types.RouteError{Kind: types.ErrLockHeld, Destination: l.Path, Message: "Route operation locked"}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to stat lock %s: %w", l.Path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if force {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	f, err := os.OpenFile(l.Path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return &types.RouteError{Kind: types.ErrLockHeld, Destination: l.Path, Message: "Route operation locked"}
	}
	if err != nil {
		return fmt.Errorf("failed to create lock %s: %w", l.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to create lock %s: %w", l.Path, err)
	}

	// a forced acquire over a fresh marker must refresh its age
	now := time.Now()
	_ = os.Chtimes(l.Path, now, now)

	l.held = true
	return nil
}

// Release removes the marker. Releasing a lock that is not held is a no-op.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false

	if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release lock %s: %w", l.Path, err)
	}
	return nil
}

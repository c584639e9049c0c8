// Package lock guards the queue root against concurrent daemons.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock is an advisory exclusive lock on a file under the queue root.
// Only one daemon may hold it at a time.
type FileLock struct {
	path string
	fl   *flock.Flock
}

// New creates a lock handle at path. The lock is not acquired yet.
func New(path string) *FileLock {
	return &FileLock{path: path, fl: flock.New(path)}
}

// TryLock acquires the lock without blocking. It fails if another process
// already holds it.
func (l *FileLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s held by another daemon", l.path)
	}
	return nil
}

// Unlock releases the lock and removes the lock file. Safe to call when the
// lock was never acquired.
func (l *FileLock) Unlock() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	_ = os.Remove(l.path)
	return nil
}

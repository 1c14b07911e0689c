// Package filelock guards the state document against torn writes. Every
// mutation of state.json happens under an advisory flock and lands via an
// atomic temp-file rename, so readers never observe a partial document.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an advisory file lock scoped to one on-disk document.
type Lock struct {
	flock *flock.Flock
	path  string
}

// ForFile returns the lock guarding the document at path. The lock file lives
// next to the document with a ".lock" suffix.
func ForFile(path string) *Lock {
	lockPath := path + ".lock"
	return &Lock{flock: flock.New(lockPath), path: lockPath}
}

// Acquire takes the exclusive lock, blocking until it is available.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	return nil
}

// TryAcquire takes the lock without blocking. It reports false when another
// process holds it.
func (l *Lock) TryAcquire() (bool, error) {
	held, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.path, err)
	}
	return held, nil
}

// Release gives the lock back.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// AtomicWrite replaces the file at path with data in one step: the content is
// written to a temp file in the same directory, synced, then renamed over the
// target. On failure the original file is untouched.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}

// WithLock runs fn while holding the exclusive lock for path.
func WithLock(path string, fn func() error) error {
	lock := ForFile(path)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

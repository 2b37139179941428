// Package statefile writes the console's small state files. Writers hold a
// cross-process lock and replace the file atomically, so a desktop and a
// CLI command running side by side never read a torn file.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Write replaces path with data.
func Write(path string, data []byte) error {
	return Update(path, func([]byte) ([]byte, error) { return data, nil })
}

// Update reads path, passes its contents to fn and writes what fn returns,
// all under the file's lock. A missing file reads as nil. When fn returns
// an error nothing is written.
func Update(path string, fn func(current []byte) ([]byte, error)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	h, err := lock(path)
	if err != nil {
		return err
	}
	defer func() { _ = h.unlock() }()

	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	return writeAtomic(path, next)
}

// writeAtomic writes to a temp file in the same directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize save: %w", err)
	}
	return nil
}

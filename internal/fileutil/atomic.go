// Package fileutil holds the crash-safe file writes used by the wallet
// file and the JSON UTXO store.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// WriteAtomic replaces path with data: it writes a temp file next to
// path, syncs it and renames it over the target. A failure leaves any
// previous content in place.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: callers validate path
		return fmt.Errorf("renaming temp file: %w", err)
	}

	// Best effort: make the rename durable.
	if d, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir derived from path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// ReadOptional reads path and reports whether it existed. A missing file
// is not an error.
func ReadOptional(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, ErrEmptyPath
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: callers validate path
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Package filesystem provides the small set of file primitives the stores are built on.
package filesystem

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrMalformedData is returned when a backing file has content that cannot be decoded
	ErrMalformedData error = fmt.Errorf("malformed data")
)

// ReadIfExists returns the content of the file at path. The boolean is false if the file does not exist or holds
// only whitespace, in which case the returned content is nil.
func ReadIfExists(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, false, nil
	}
	return b, true, nil
}

// WriteAtomic writes data to a temporary file next to path and renames it over path, so a reader sees either the
// previous content or the new content but never a partial write
func WriteAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// RemoveIfExists deletes the file at path. A missing file is not an error.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// LocalFileStore implements domain.FileStore on an afero filesystem
type LocalFileStore struct {
	fs afero.Fs
}

// NewLocalFileStore creates a store over fs; use afero.NewOsFs() in production
func NewLocalFileStore(fs afero.Fs) *LocalFileStore {
	return &LocalFileStore{fs: fs}
}

// Ensure creates dir and all missing parents.
// An already existing directory, including one created concurrently, is not an error.
func (s *LocalFileStore) Ensure(dir string) error {
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		// MkdirAll can lose a race against a sibling request; re-check before failing
		if info, statErr := s.fs.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrDirectoryCreate, dir, err)
	}
	return nil
}

// Write stores data at path in one call
func (s *LocalFileStore) Write(path string, data []byte) error {
	if err := afero.WriteFile(s.fs, path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Read returns the full contents of path
func (s *LocalFileStore) Read(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path is an existing regular file
func (s *LocalFileStore) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// RemoveOlderThan deletes regular files directly inside dir whose
// modification time is before cutoff. A missing dir removes nothing.
func (s *LocalFileStore) RemoveOlderThan(dir string, cutoff time.Time) (int, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !entry.ModTime().Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(dir, entry.Name())); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

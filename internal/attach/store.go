// Package attach stores capsule attachment blobs on disk under the
// application base directory. Stored names are server-controlled; the
// original filename only travels in the database and the outgoing email.
package attach

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Mk007V2/timecapsule/internal/errors"
)

// Store is a disk-backed blob store rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates (if needed) baseDir/attachments with restricted
// permissions and returns a Store rooted there.
func NewStore(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "attachments")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}
	_ = os.Chmod(dir, 0700)
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// StoredName derives a unique server-controlled blob name from the original
// filename: a random UUID prefix plus the sanitized base name.
func StoredName(original string) string {
	return uuid.NewString() + "_" + sanitize(original)
}

// sanitize strips path components and characters that have no business in a
// filename. An empty result falls back to "attachment".
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}

// Save writes blob content from r under the given stored name.
func (s *Store) Save(storedName string, r io.Reader) error {
	path, err := s.Path(storedName)
	if err != nil {
		return err
	}

	// O_EXCL: stored names are unique, a collision means a bug or an attack
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create attachment: %w", err))
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return errors.NewInternal(fmt.Errorf("failed to write attachment: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return errors.NewInternal(fmt.Errorf("failed to write attachment: %w", err))
	}

	return nil
}

// Read returns the full blob content for a stored name.
func (s *Store) Read(storedName string) ([]byte, error) {
	path, err := s.Path(storedName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Remove deletes a blob. Removing a missing blob is not an error.
func (s *Store) Remove(storedName string) error {
	path, err := s.Path(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewInternal(fmt.Errorf("failed to remove attachment: %w", err))
	}
	return nil
}

// Path resolves a stored name to an absolute path inside the store,
// rejecting traversal and symlinks. Stored names must be flat: no
// separators, no dot-dot.
func (s *Store) Path(storedName string) (string, error) {
	if storedName == "" || strings.ContainsAny(storedName, "/\\") || strings.Contains(storedName, "..") {
		return "", errors.NewInvalidRequest("invalid attachment name")
	}

	path := filepath.Join(s.dir, storedName)

	// The blob itself must not be a symlink pointing out of the store
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return "", errors.NewInvalidRequest("attachment must not be a symlink")
		}
	}

	return path, nil
}

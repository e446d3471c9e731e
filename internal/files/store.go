package files

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/memmcp/memmcp/internal/errors"
)

// UpdateMode selects how Update combines new content with the existing
// file body.
type UpdateMode string

const (
	UpdateReplace UpdateMode = "replace"
	UpdateAppend  UpdateMode = "append"
	UpdatePrepend UpdateMode = "prepend"
)

// Store performs file CRUD confined to a single root directory. All
// writes are atomic: content goes to a temp file in the target
// directory, is fsynced, and is renamed over the destination.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(errors.KindInvalidArgument, err, "resolve memory root %q", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(errors.KindInternal, err, "create memory root %q", abs)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute memory root.
func (s *Store) Root() string {
	return s.root
}

// Abs resolves a relative file path against the root, rejecting paths
// that would escape it.
func (s *Store) Abs(relPath string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	if clean == "." || clean == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Newf(errors.KindInvalidArgument, "invalid file path %q", relPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Exists reports whether relPath exists under the root.
func (s *Store) Exists(relPath string) bool {
	abs, err := s.Abs(relPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Read returns the bytes of relPath.
func (s *Store) Read(relPath string) ([]byte, error) {
	abs, err := s.Abs(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.KindNotFound, "file not found: %s", relPath)
		}
		return nil, errors.Wrapf(errors.KindInternal, err, "read %s", relPath)
	}
	return data, nil
}

// Write stores content at relPath unconditionally, creating parent
// directories as needed, and returns the hash of the written bytes.
// Line endings are normalized to LF.
func (s *Store) Write(relPath, content string) (string, error) {
	abs, err := s.Abs(relPath)
	if err != nil {
		return "", err
	}
	data := []byte(normalize(content))
	if err := writeAtomic(abs, data); err != nil {
		return "", errors.Wrapf(errors.KindInternal, err, "write %s", relPath)
	}
	return HashBytes(data), nil
}

// Create writes content at relPath, failing if the path already exists.
func (s *Store) Create(relPath, content string) (string, error) {
	if s.Exists(relPath) {
		return "", errors.Newf(errors.KindAlreadyExists, "file already exists: %s", relPath)
	}
	return s.Write(relPath, content)
}

// Update applies an update mode to relPath and returns the resulting
// content and its hash. Append and prepend join old and new content
// with a blank line.
func (s *Store) Update(relPath, content string, mode UpdateMode) (string, string, error) {
	existing, err := s.Read(relPath)
	if err != nil {
		return "", "", err
	}
	var updated string
	switch mode {
	case UpdateReplace, "":
		updated = content
	case UpdateAppend:
		updated = strings.TrimRight(string(existing), "\n") + "\n\n" + content
	case UpdatePrepend:
		updated = strings.TrimRight(content, "\n") + "\n\n" + string(existing)
	default:
		return "", "", errors.Newf(errors.KindInvalidArgument, "unknown update mode %q", mode)
	}
	hash, err := s.Write(relPath, updated)
	if err != nil {
		return "", "", err
	}
	return normalize(updated), hash, nil
}

// Delete removes relPath.
func (s *Store) Delete(relPath string) error {
	abs, err := s.Abs(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return errors.Newf(errors.KindNotFound, "file not found: %s", relPath)
		}
		return errors.Wrapf(errors.KindInternal, err, "delete %s", relPath)
	}
	return nil
}

// Move renames oldPath to newPath on disk.
func (s *Store) Move(oldPath, newPath string) error {
	src, err := s.Abs(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.Abs(newPath)
	if err != nil {
		return err
	}
	if !s.Exists(oldPath) {
		return errors.Newf(errors.KindNotFound, "file not found: %s", oldPath)
	}
	if s.Exists(newPath) {
		return errors.Newf(errors.KindAlreadyExists, "file already exists: %s", newPath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(errors.KindInternal, err, "create directory for %s", newPath)
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(errors.KindInternal, err, "move %s to %s", oldPath, newPath)
	}
	return nil
}

// Copy duplicates srcPath at dstPath.
func (s *Store) Copy(srcPath, dstPath string) error {
	data, err := s.Read(srcPath)
	if err != nil {
		return err
	}
	if s.Exists(dstPath) {
		return errors.Newf(errors.KindAlreadyExists, "file already exists: %s", dstPath)
	}
	_, err = s.Write(dstPath, string(data))
	return err
}

// List returns the relative paths of all markdown files under the root,
// sorted. Dot files and dot directories are skipped.
func (s *Store) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if p != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.KindInternal, err, "walk %s", s.root)
	}
	sort.Strings(paths)
	return paths, nil
}

// normalize rewrites CRLF to LF. Files are always stored with LF endings.
func normalize(content string) string {
	return strings.ReplaceAll(content, "\r\n", "\n")
}

// writeAtomic writes data to path via a uniquely named temp file in the
// same directory, then renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Package security confines vault file access to a configured directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/keevault/internal/storage"
)

var (
	ErrPathEscapes = errors.New("path escapes vault directory")
	ErrEmptyPath   = errors.New("empty path not allowed")
	ErrNotAFile    = errors.New("not a regular file")
)

// PathValidator resolves user-supplied vault paths against a vault
// directory. File access goes through an os.Root so symlinks and ".."
// cannot reach outside it.
type PathValidator struct {
	root *os.Root
	dir  string
}

// New opens dir as the vault directory
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault directory: %w", err)
	}

	return &PathValidator{root: root, dir: absPath}, nil
}

// Close releases the directory handle
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// Dir returns the absolute vault directory
func (pv *PathValidator) Dir() string {
	return pv.dir
}

// ValidateAndNormalize returns userPath relative to the vault directory
// with forward slashes. Relative paths are taken relative to the
// directory; absolute paths must point inside it.
func (pv *PathValidator) ValidateAndNormalize(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	if filepath.IsAbs(userPath) {
		rel, err := filepath.Rel(pv.dir, filepath.Clean(userPath))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
		}
		userPath = rel
	}

	if !filepath.IsLocal(userPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	if cleanPath == "." {
		return "", fmt.Errorf("%w: %s is the vault directory itself", ErrNotAFile, userPath)
	}

	return filepath.ToSlash(cleanPath), nil
}

// Abs returns the absolute path of a normalized relative path
func (pv *PathValidator) Abs(rel string) string {
	return filepath.Join(pv.dir, filepath.FromSlash(rel))
}

// File validates userPath and returns a backend confined to the vault
// directory, along with its absolute path
func (pv *PathValidator) File(userPath string) (*storage.File, string, error) {
	rel, err := pv.ValidateAndNormalize(userPath)
	if err != nil {
		return nil, "", err
	}
	return storage.NewFileInRoot(pv.root, filepath.FromSlash(rel)), pv.Abs(rel), nil
}

// ExistingFile is File for a path that must already be a regular file
func (pv *PathValidator) ExistingFile(userPath string) (*storage.File, string, error) {
	info, err := pv.StatInRoot(userPath)
	if err != nil {
		return nil, "", err
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("%w: %s", ErrNotAFile, userPath)
	}
	return pv.File(userPath)
}

// MkdirAllInRoot creates the parent directories of a vault path
func (pv *PathValidator) MkdirAllInRoot(userPath string, perm os.FileMode) error {
	rel, err := pv.ValidateAndNormalize(userPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	parent := filepath.Dir(filepath.FromSlash(rel))
	if parent == "." {
		return nil
	}
	return pv.root.MkdirAll(parent, perm)
}

// StatInRoot stats a vault path through the root
func (pv *PathValidator) StatInRoot(userPath string) (os.FileInfo, error) {
	rel, err := pv.ValidateAndNormalize(userPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Stat(filepath.FromSlash(rel))
}

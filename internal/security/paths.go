// Package security guards file paths supplied on the command line.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is returned when an export path escapes every
// allowed directory.
var ErrOutsideAllowedDirs = errors.New("path outside allowed directories")

// ValidateExportPath accepts paths under the working directory or the
// system temp directory.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidateWithin(path, cwd, os.TempDir())
}

// ValidateWithin reports whether path, after resolving symlinks, lies
// under one of dirs. A path that does not exist yet is judged by its
// nearest existing parent.
func ValidateWithin(path string, dirs ...string) error {
	if len(dirs) == 0 {
		return errors.New("no allowed directories specified")
	}
	target, err := canonical(path)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		root, err := canonical(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOutsideAllowedDirs, path)
}

// canonical returns the absolute, symlink-free form of path. Missing
// trailing components are re-attached to the deepest existing ancestor
// so a symlinked parent cannot smuggle the path elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	existing, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

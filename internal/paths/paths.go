// Package paths provides canonical helpers for project-relative document
// paths (e.g. "rooms/town/tavern.yaml") so that the content store, the
// watcher, the snapshot store and the CLI agree on one spelling of a path.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathOutsideProject is returned when a path escapes the project root.
var ErrPathOutsideProject = errors.New("path is outside the project")

// NormalizeDirRoot normalizes a directory root to have:
// - no leading slash
// - exactly one trailing slash (unless empty or ".")
//
// Examples:
// - "/content/" -> "content/"
// - "content"   -> "content/"
// - "."         -> ""
func NormalizeDirRoot(root string) string {
	root = filepath.ToSlash(root)
	root = strings.TrimPrefix(root, "./")
	root = strings.Trim(root, "/")
	if root == "" || root == "." {
		return ""
	}
	return root + "/"
}

// NormalizeRel normalizes a relative path-like value:
// - converts OS separators to '/'
// - trims leading "./" and leading "/"
// - collapses repeated '/'
func NormalizeRel(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimPrefix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// TopDir returns the first segment of a relative path, or "" when the path
// has no directory component.
func TopDir(rel string) string {
	rel = NormalizeRel(rel)
	i := strings.IndexByte(rel, '/')
	if i <= 0 {
		return ""
	}
	return rel[:i]
}

// Rel converts an absolute or root-relative path to a normalized path
// relative to root. Paths that escape root return ErrPathOutsideProject.
func Rel(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, filepath.FromSlash(path))
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideProject, path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideProject, path)
	}
	return NormalizeRel(rel), nil
}

// ValidateWithinProject returns ErrPathOutsideProject when path, after
// resolving symlinks where possible, is not inside root.
func ValidateWithinProject(root, path string) error {
	resolvedRoot := root
	if r, err := filepath.EvalSymlinks(root); err == nil {
		resolvedRoot = r
	}
	resolvedPath := path
	if p, err := filepath.EvalSymlinks(path); err == nil {
		resolvedPath = p
	}
	_, err := Rel(resolvedRoot, resolvedPath)
	return err
}

// IsHidden reports whether any segment of rel starts with a dot.
func IsHidden(rel string) bool {
	for _, part := range strings.Split(NormalizeRel(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

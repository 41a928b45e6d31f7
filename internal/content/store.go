// Package content is the read/write boundary to the project's content tree:
// one directory per content type, YAML documents inside, one schema file per
// directory. It knows nothing about references; it only lists, reads, and
// writes documents.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/paths"
	"github.com/aidanlsb/cstudio/internal/schema"
)

var (
	// ErrNotFound indicates the document does not exist on disk.
	ErrNotFound = errors.New("document not found")
	// ErrOutsideProject indicates a path that escapes the content root.
	ErrOutsideProject = paths.ErrPathOutsideProject
	// ErrNotContent indicates a path that is not a content document
	// (wrong directory, wrong extension, schema file, or ignored).
	ErrNotContent = errors.New("not a content document")
)

// StateDir is the per-project directory holding derived state (snapshot DB,
// locks). It is never scanned.
const StateDir = ".cstudio"

// Options configures a Store.
type Options struct {
	// SchemaFile is the per-directory schema file name.
	// Default: schema.DefaultFileName.
	SchemaFile string

	// Extensions lists document file extensions. Default: .yaml, .yml.
	Extensions []string

	// Ignore lists doublestar globs, relative to the content root, that are
	// never treated as documents.
	Ignore []string
}

// Store provides access to the documents under one content root.
type Store struct {
	root       string
	schemaFile string
	exts       []string
	ignore     []string
}

// New creates a Store rooted at contentRoot. Invalid ignore globs are
// reported here rather than silently never matching.
func New(contentRoot string, opts Options) (*Store, error) {
	if contentRoot == "" {
		return nil, fmt.Errorf("content root is required")
	}
	s := &Store{
		root:       contentRoot,
		schemaFile: opts.SchemaFile,
		exts:       opts.Extensions,
		ignore:     opts.Ignore,
	}
	if s.schemaFile == "" {
		s.schemaFile = schema.DefaultFileName
	}
	if len(s.exts) == 0 {
		s.exts = []string{".yaml", ".yml"}
	}
	for _, pattern := range s.ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return s, nil
}

// Root returns the content root directory.
func (s *Store) Root() string { return s.root }

// SchemaFile returns the per-directory schema file name.
func (s *Store) SchemaFile() string { return s.schemaFile }

// Abs converts a content-relative path to an absolute file path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(paths.NormalizeRel(rel)))
}

// Rel converts an absolute (or root-relative) path to a normalized
// content-relative path.
func (s *Store) Rel(path string) (string, error) {
	return paths.Rel(s.root, path)
}

// TypeOf reports the content type of a document path. ok is false when the
// path is not a content document.
func (s *Store) TypeOf(rel string) (model.ContentType, bool) {
	rel = paths.NormalizeRel(rel)
	t, ok := model.ParseContentType(paths.TopDir(rel))
	if !ok {
		return "", false
	}
	if !s.hasDocumentExt(rel) || s.isIgnored(rel) {
		return "", false
	}
	if filepath.Base(rel) == s.schemaFile {
		return "", false
	}
	return t, true
}

// SchemaTypeOf reports whether rel is the schema file of a type directory.
func (s *Store) SchemaTypeOf(rel string) (model.ContentType, bool) {
	rel = paths.NormalizeRel(rel)
	dir, file := filepath.Split(filepath.FromSlash(rel))
	if file != s.schemaFile {
		return "", false
	}
	return model.ParseContentType(strings.TrimSuffix(filepath.ToSlash(dir), "/"))
}

func (s *Store) hasDocumentExt(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range s.exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func (s *Store) isIgnored(rel string) bool {
	if paths.IsHidden(rel) {
		return true
	}
	for _, pattern := range s.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ListEntities returns the content-relative paths of every document,
// optionally restricted to the given types, in lexical order. Unknown types
// simply match nothing.
func (s *Store) ListEntities(typeFilter ...model.ContentType) ([]string, error) {
	want := make(map[model.ContentType]bool, len(typeFilter))
	for _, t := range typeFilter {
		want[t] = true
	}

	var out []string
	err := s.walk(func(rel string, _ fs.DirEntry) error {
		t, _ := s.TypeOf(rel)
		if len(want) == 0 || want[t] {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// walk visits every content document. Unreadable directories are skipped.
func (s *Store) walk(fn func(rel string, d fs.DirEntry) error) error {
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("failed to read content root %s: %w", s.root, err)
	}
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := s.Rel(path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == s.root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || d.Name() == StateDir {
				return filepath.SkipDir
			}
			// Only type directories hold content.
			if !strings.Contains(rel, "/") {
				if _, ok := model.ParseContentType(rel); !ok {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if _, ok := s.TypeOf(rel); !ok {
			return nil
		}
		if err := paths.ValidateWithinProject(s.root, path); err != nil {
			return nil
		}
		return fn(rel, d)
	})
}

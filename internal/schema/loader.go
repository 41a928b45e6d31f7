package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/model"
)

// Parse decodes a schema file body.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Fields.Defs == nil {
		s.Fields.Defs = make(map[string]*FieldDefinition)
	}
	return &s, nil
}

// Load reads the schema file at path. A missing file yields (nil, nil):
// the type simply has no structural rules.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Set caches the schema of every content type under one content root.
// Schemas load lazily and stay cached until invalidated. Set is safe for
// concurrent use.
type Set struct {
	root     string
	fileName string

	mu      sync.RWMutex
	loaded  map[model.ContentType]*Schema
	loadErr map[model.ContentType]error
}

// NewSet creates a schema cache for the given content root. An empty
// fileName uses DefaultFileName.
func NewSet(contentRoot, fileName string) *Set {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Set{
		root:     contentRoot,
		fileName: fileName,
		loaded:   make(map[model.ContentType]*Schema),
		loadErr:  make(map[model.ContentType]error),
	}
}

// FileName returns the schema file name looked up in each type directory.
func (s *Set) FileName() string { return s.fileName }

// Path returns the schema file path for a type.
func (s *Set) Path(t model.ContentType) string {
	return filepath.Join(s.root, string(t), s.fileName)
}

// Get returns the schema for t. It returns (nil, nil) when the type has no
// schema file; a malformed file returns its parse error every time until
// invalidated.
func (s *Set) Get(t model.ContentType) (*Schema, error) {
	s.mu.RLock()
	sch, ok := s.loaded[t]
	err := s.loadErr[t]
	s.mu.RUnlock()
	if ok || err != nil {
		return sch, err
	}

	sch, err = Load(s.Path(t))
	if sch != nil {
		sch.Type = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loadErr[t] = err
		return nil, err
	}
	s.loaded[t] = sch
	return sch, nil
}

// Invalidate drops the cached schema of t so the next Get re-reads it.
func (s *Set) Invalidate(t model.ContentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, t)
	delete(s.loadErr, t)
}

// InvalidateAll drops every cached schema.
func (s *Set) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = make(map[model.ContentType]*Schema)
	s.loadErr = make(map[model.ContentType]error)
}

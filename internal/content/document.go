package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/paths"
)

// Document is one parsed content file.
type Document struct {
	// Path is the content-relative path ("rooms/tavern.yaml").
	Path string

	Type model.ContentType

	// Raw is the file content as read, used for line lookups.
	Raw []byte

	// Node is the root node of the first YAML document, nil for an empty file.
	Node *yaml.Node

	// Data is the decoded first YAML document. Mappings decode as
	// map[string]interface{}.
	Data interface{}

	Mtime time.Time
}

// Mapping returns Data as a mapping, or nil when the document is not one.
func (d *Document) Mapping() map[string]interface{} {
	m, _ := d.Data.(map[string]interface{})
	return m
}

var yamlLineRE = regexp.MustCompile(`line (\d+)`)

// ReadDocument reads and parses one document. Syntax failures are returned
// as *model.ParseError; a missing file is ErrNotFound.
func (s *Store) ReadDocument(rel string) (*Document, error) {
	rel = paths.NormalizeRel(rel)
	t, ok := s.TypeOf(rel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotContent, rel)
	}

	abs := s.Abs(rel)
	if err := paths.ValidateWithinProject(s.root, abs); err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	doc, err := ParseDocument(rel, raw)
	if err != nil {
		var pe *model.ParseError
		if errors.As(err, &pe) {
			pe.Mtime = info.ModTime()
		}
		return nil, err
	}
	doc.Type = t
	doc.Mtime = info.ModTime()
	return doc, nil
}

// ParseDocument parses raw YAML. Only the first document of a multi-document
// stream is used.
func ParseDocument(rel string, raw []byte) (*Document, error) {
	doc := &Document{Path: rel, Raw: raw}
	if t, ok := model.ParseContentType(paths.TopDir(rel)); ok {
		doc.Type = t
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		return nil, newParseError(rel, err)
	}
	if len(root.Content) == 0 {
		return doc, nil
	}

	var data interface{}
	if err := root.Decode(&data); err != nil {
		return nil, newParseError(rel, err)
	}
	doc.Node = &root
	doc.Data = normalize(data)
	return doc, nil
}

func newParseError(rel string, err error) *model.ParseError {
	pe := &model.ParseError{Path: rel, Message: err.Error(), Err: err}
	if m := yamlLineRE.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			pe.Line = n
		}
	}
	return pe
}

// normalize converts any map[interface{}]interface{} left by the decoder
// (non-string keys) into string-keyed maps.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalize(inner)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalize(inner)
		}
		return out
	case []interface{}:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	default:
		return v
	}
}

// Stat returns the modification time of a document.
func (s *Store) Stat(rel string) (time.Time, error) {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	return info.ModTime(), nil
}

package content

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/atomicfile"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/paths"
	"github.com/aidanlsb/cstudio/internal/schema"
	"github.com/aidanlsb/cstudio/internal/slugs"
)

// ErrExists is returned when scaffolding over an existing document.
var ErrExists = atomicfile.ErrExists

// ScaffoldPath returns the content-relative path a new entity of type t
// with the given id is written to.
func (s *Store) ScaffoldPath(t model.ContentType, id string) string {
	return string(t) + "/" + slugs.File(id) + s.exts[0]
}

// ScaffoldField is one key of a new document, in output order.
type ScaffoldField struct {
	Key   string
	Value interface{}
}

// RenderScaffold builds the body of a new document: the primary key and
// optional name first, then every schema field with a default, then required
// schema fields without one as empty placeholders.
func RenderScaffold(primaryKey, id, name string, sch *schema.Schema) ([]byte, error) {
	fields := []ScaffoldField{{Key: primaryKey, Value: id}}
	seen := map[string]bool{primaryKey: true}
	if name != "" {
		fields = append(fields, ScaffoldField{Key: "name", Value: name})
		seen["name"] = true
	}
	if sch != nil {
		for _, key := range sch.Fields.Order {
			def := sch.Fields.Get(key)
			if seen[key] || def == nil {
				continue
			}
			switch {
			case def.Default != nil:
				fields = append(fields, ScaffoldField{Key: key, Value: def.Default})
			case def.Required:
				fields = append(fields, ScaffoldField{Key: key, Value: placeholder(def)})
			default:
				continue
			}
			seen[key] = true
		}
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		var v yaml.Node
		if err := v.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", f.Key, err)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}, &v)
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	return out, nil
}

func placeholder(def *schema.FieldDefinition) interface{} {
	switch def.Type {
	case schema.FieldTypeNumber:
		return 0
	case schema.FieldTypeBool:
		return false
	case schema.FieldTypeArray:
		return []interface{}{}
	case schema.FieldTypeObject:
		return map[string]interface{}{}
	case schema.FieldTypeEnum:
		return def.Values[0]
	default:
		return ""
	}
}

// CreateDocument writes a new document. It fails with ErrExists rather than
// overwrite.
func (s *Store) CreateDocument(rel string, body []byte) error {
	if _, ok := s.TypeOf(rel); !ok {
		return fmt.Errorf("%w: %s", ErrNotContent, rel)
	}
	abs := s.Abs(rel)
	if _, err := paths.Rel(s.root, abs); err != nil {
		return err
	}
	return atomicfile.Create(abs, body, 0o644)
}

// WriteDocument replaces a document's content.
func (s *Store) WriteDocument(rel string, body []byte) error {
	if _, ok := s.TypeOf(rel); !ok {
		return fmt.Errorf("%w: %s", ErrNotContent, rel)
	}
	abs := s.Abs(rel)
	if _, err := paths.Rel(s.root, abs); err != nil {
		return err
	}
	return atomicfile.WriteFile(abs, body, 0)
}

// RemoveDocument deletes a document from disk.
func (s *Store) RemoveDocument(rel string) error {
	if _, ok := s.TypeOf(rel); !ok {
		return fmt.Errorf("%w: %s", ErrNotContent, rel)
	}
	abs := s.Abs(rel)
	if err := paths.ValidateWithinProject(s.root, abs); err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return fmt.Errorf("failed to remove %s: %w", rel, err)
	}
	return nil
}

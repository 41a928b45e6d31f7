// Package schema handles the per-type field contracts that live next to the
// content they describe (one schema file per content-type directory) and the
// structural checks run against them: required fields, declared types and
// enum membership.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/model"
)

// DefaultFileName is the schema file looked up in each type directory.
const DefaultFileName = "_schema.yaml"

// Schema is the field contract of one content type.
type Schema struct {
	// Type is the content type this schema governs. Set by the loader.
	Type model.ContentType `yaml:"-"`

	// Path is the schema file the contract was loaded from. Set by the loader.
	Path string `yaml:"-"`

	Description string   `yaml:"description,omitempty"`
	Fields      FieldSet `yaml:"fields"`
}

// FieldSet is an ordered set of field definitions. Order follows the schema
// file so scaffolds and reports list fields the way authors wrote them.
type FieldSet struct {
	Defs  map[string]*FieldDefinition
	Order []string
}

// Get returns the definition of a field, or nil.
func (fs FieldSet) Get(name string) *FieldDefinition {
	if fs.Defs == nil {
		return nil
	}
	return fs.Defs[name]
}

// UnmarshalYAML reads a mapping of field name to definition. A definition may
// be a full mapping ({type: string, required: true}) or just a type name.
func (fs *FieldSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	fs.Defs = make(map[string]*FieldDefinition, len(node.Content)/2)
	fs.Order = fs.Order[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value

		def := &FieldDefinition{}
		switch valNode.Kind {
		case yaml.ScalarNode:
			def.Type = FieldType(valNode.Value)
		case yaml.MappingNode:
			if err := valNode.Decode(def); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		default:
			return fmt.Errorf("line %d: field %q must be a type name or a mapping", valNode.Line, name)
		}
		def.Type = def.Type.normalize()
		if def.Type == "" {
			def.Type = FieldTypeAny
		}
		if !def.Type.Valid() {
			return fmt.Errorf("line %d: field %q has unknown type %q", valNode.Line, name, def.Type)
		}
		if def.Items != "" {
			def.Items = def.Items.normalize()
			if !def.Items.Valid() {
				return fmt.Errorf("line %d: field %q has unknown item type %q", valNode.Line, name, def.Items)
			}
		}
		if def.Type == FieldTypeEnum && len(def.Values) == 0 {
			return fmt.Errorf("line %d: enum field %q has no values", valNode.Line, name)
		}

		if _, dup := fs.Defs[name]; !dup {
			fs.Order = append(fs.Order, name)
		}
		fs.Defs[name] = def
	}
	return nil
}

// FieldDefinition declares one field.
type FieldDefinition struct {
	Type        FieldType   `yaml:"type"`
	Required    bool        `yaml:"required,omitempty"`
	Default     interface{} `yaml:"default,omitempty"`
	Values      []string    `yaml:"values,omitempty"` // For enum types
	Items       FieldType   `yaml:"items,omitempty"`  // For array types
	Min         *float64    `yaml:"min,omitempty"`    // For number types
	Max         *float64    `yaml:"max,omitempty"`    // For number types
	Description string      `yaml:"description,omitempty"`
}

// FieldType is the declared type of a field.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
	FieldTypeBool   FieldType = "bool"
	FieldTypeArray  FieldType = "array"
	FieldTypeObject FieldType = "object"
	FieldTypeEnum   FieldType = "enum"
	FieldTypeAny    FieldType = "any"
)

func (t FieldType) normalize() FieldType {
	switch t {
	case "boolean":
		return FieldTypeBool
	case "int", "integer", "float":
		return FieldTypeNumber
	case "list":
		return FieldTypeArray
	case "map", "mapping":
		return FieldTypeObject
	}
	return t
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBool, FieldTypeArray,
		FieldTypeObject, FieldTypeEnum, FieldTypeAny:
		return true
	}
	return false
}

// RequiredFields returns required field names in declaration order.
func (s *Schema) RequiredFields() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, name := range s.Fields.Order {
		if s.Fields.Defs[name].Required {
			out = append(out, name)
		}
	}
	return out
}

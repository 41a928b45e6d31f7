package model

import "strconv"

// Entity is one piece of content extracted from a document.
type Entity struct {
	// Type is the content category (the document's directory).
	Type ContentType `json:"entity_type"`

	// ID is unique within Type and comes from the type's primary-key field.
	ID string `json:"entity_id"`

	// DisplayName is a best-effort human label; falls back to ID.
	DisplayName string `json:"display_name"`

	// SourcePath is the document path relative to the content root,
	// always slash-separated.
	SourcePath string `json:"source_path"`

	// Line is the 1-indexed line where the entity starts in its document.
	// Single-entity documents start at line 1.
	Line int `json:"line,omitempty"`

	// Fields is the full parsed key/value structure of the entity.
	Fields map[string]interface{} `json:"raw_fields,omitempty"`
}

// Key returns the (type, id) pair identifying this entity.
func (e Entity) Key() EntityKey { return EntityKey{Type: e.Type, ID: e.ID} }

// GetID returns "type/id".
func (e Entity) GetID() string { return e.Key().String() }

// GetKind returns "entity" for entity results.
func (e Entity) GetKind() string { return "entity" }

// GetContent returns the display name.
func (e Entity) GetContent() string { return e.DisplayName }

// GetLocation returns a short location string (path:line).
func (e Entity) GetLocation() string {
	if e.Line > 0 {
		return e.SourcePath + ":" + strconv.Itoa(e.Line)
	}
	return e.SourcePath
}

// EntityKey identifies an entity across the whole project.
type EntityKey struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id"`
}

func (k EntityKey) String() string { return string(k.Type) + "/" + k.ID }

// Less orders keys by type, then id.
func (k EntityKey) Less(other EntityKey) bool {
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.ID < other.ID
}

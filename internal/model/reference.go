package model

// Reference is a directed edge: the source entity's field names the target
// entity. The target may not exist; that is what broken-reference detection
// reports.
type Reference struct {
	SourceType ContentType `json:"source_type"`
	SourceID   string      `json:"source_id"`

	// FieldPath is the dotted field the reference was read from,
	// e.g. "exits.north" or "available_abilities".
	FieldPath string `json:"field_path"`

	TargetType ContentType `json:"target_type"`
	TargetID   string      `json:"target_id"`

	// SourcePath is the document the edge was extracted from.
	SourcePath string `json:"source_path,omitempty"`
}

// Source returns the key of the referencing entity.
func (r Reference) Source() EntityKey { return EntityKey{Type: r.SourceType, ID: r.SourceID} }

// Target returns the key of the referenced entity.
func (r Reference) Target() EntityKey { return EntityKey{Type: r.TargetType, ID: r.TargetID} }

// GetID returns the source key.
func (r Reference) GetID() string { return r.Source().String() }

// GetKind returns "reference" for reference results.
func (r Reference) GetKind() string { return "reference" }

// GetContent returns "field -> type/id".
func (r Reference) GetContent() string { return r.FieldPath + " -> " + r.Target().String() }

// GetLocation returns the source document path.
func (r Reference) GetLocation() string { return r.SourcePath }

// CompareReferences orders references by source, field path, target, then
// source document. It returns -1, 0 or 1.
func CompareReferences(a, b Reference) int {
	switch {
	case a.SourceType != b.SourceType:
		return cmpString(string(a.SourceType), string(b.SourceType))
	case a.SourceID != b.SourceID:
		return cmpString(a.SourceID, b.SourceID)
	case a.FieldPath != b.FieldPath:
		return cmpString(a.FieldPath, b.FieldPath)
	case a.TargetType != b.TargetType:
		return cmpString(string(a.TargetType), string(b.TargetType))
	case a.TargetID != b.TargetID:
		return cmpString(a.TargetID, b.TargetID)
	default:
		return cmpString(a.SourcePath, b.SourcePath)
	}
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

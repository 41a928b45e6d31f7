package query

import (
	"strings"
	"time"

	"github.com/aidanlsb/cstudio/internal/model"
)

// DependencyResult describes an entity's edges and whether deleting it
// would break anything.
type DependencyResult struct {
	EntityType model.ContentType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Exists     bool              `json:"exists"`

	References   []model.Reference `json:"references"`
	ReferencedBy []model.Reference `json:"referenced_by"`

	// SafeToDelete is true iff ReferencedBy is empty.
	SafeToDelete bool `json:"safe_to_delete"`

	// BlockingReferences repeats ReferencedBy when the entity is not safe
	// to delete, for "what would break" messaging.
	BlockingReferences []model.Reference `json:"blocking_references"`
}

// Dependencies returns the outgoing and incoming edges of (t, id). Edges
// are reported whether or not the entity itself exists, so a dangling
// target's referrers can be listed too. An unknown type yields an empty,
// safe-to-delete result.
func (e *Engine) Dependencies(t model.ContentType, id string) (*DependencyResult, error) {
	defer e.observe("dependencies", time.Now())

	if strings.TrimSpace(string(t)) == "" {
		return nil, ErrEmptyType
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}

	key := model.EntityKey{Type: t, ID: id}
	res := &DependencyResult{
		EntityType:         t,
		EntityID:           id,
		Exists:             e.idx.Has(key),
		References:         e.idx.Forward(key),
		ReferencedBy:       e.idx.Reverse(key),
		BlockingReferences: []model.Reference{},
	}
	res.SafeToDelete = len(res.ReferencedBy) == 0
	if !res.SafeToDelete {
		res.BlockingReferences = append(res.BlockingReferences, res.ReferencedBy...)
	}
	return res, nil
}

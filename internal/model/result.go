package model

// Result is the interface implemented by entity and reference results so the
// CLI can render lists uniformly.
type Result interface {
	GetID() string
	GetKind() string // "entity", "reference"
	GetContent() string
	GetLocation() string
}

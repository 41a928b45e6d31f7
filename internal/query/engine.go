// Package query answers questions about one index snapshot: text search,
// dependency and safe-delete lookups, project analytics, and validation of
// a single document against its schema and the index.
//
// An Engine never mutates its index and may be used from many goroutines.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/schema"
)

var (
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrEmptyType is returned when a required content type is blank.
	ErrEmptyType = errors.New("entity type is empty")
	// ErrEmptyID is returned when a required entity id is blank.
	ErrEmptyID = errors.New("entity id is empty")
)

// DefaultTopReferenced caps Analytics' most-referenced list.
const DefaultTopReferenced = 10

// SchemaSource provides per-type schemas. *schema.Set implements it.
type SchemaSource interface {
	Get(t model.ContentType) (*schema.Schema, error)
}

// Options configures an Engine.
type Options struct {
	// Schemas supplies structural rules for Validate. Nil means none.
	Schemas SchemaSource

	// TopReferenced caps the most-referenced list. Default:
	// DefaultTopReferenced.
	TopReferenced int

	// SuggestThreshold is the minimum Jaro-Winkler similarity for a
	// "did you mean" suggestion on a dangling reference. Default: 0.85.
	SuggestThreshold float64

	// Metrics, when set, receives query latencies.
	Metrics *observe.Metrics
}

// Engine runs queries against one immutable index.
type Engine struct {
	idx  *index.Index
	opts Options
}

// New creates an engine over idx.
func New(idx *index.Index, opts Options) *Engine {
	if idx == nil {
		idx = index.Empty()
	}
	if opts.TopReferenced <= 0 {
		opts.TopReferenced = DefaultTopReferenced
	}
	if opts.SuggestThreshold <= 0 {
		opts.SuggestThreshold = 0.85
	}
	return &Engine{idx: idx, opts: opts}
}

// Index returns the snapshot the engine queries.
func (e *Engine) Index() *index.Index { return e.idx }

func (e *Engine) observe(op string, start time.Time) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordQuery(context.Background(), op, time.Since(start))
	}
}

package query

import (
	"sort"
	"strings"
	"time"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/schema"
)

// Match scores.
const (
	ScoreExactID    = 10.0
	ScoreExactField = 5.0
	ScorePrefixID   = 3.0
	ScoreContains   = 1.0
)

// SearchOptions narrows a search.
type SearchOptions struct {
	// Types restricts results to these types. Unknown types match nothing.
	Types []model.ContentType

	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// SearchResult is one ranked entity match.
type SearchResult struct {
	EntityType   model.ContentType `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	DisplayName  string            `json:"display_name"`
	SourcePath   string            `json:"source_path"`
	Score        float64           `json:"score"`
	MatchedField string            `json:"matched_field"`
}

// Search ranks entities against text. Matching is case-insensitive over the
// id, the display name, and every scalar leaf of the entity's fields: an
// exact id scores 10, an exact match on any other field 5, an id starting
// with the query 3, and any field containing it 1. An entity's score is its
// best match. Results are ordered by score, then type, then id.
func (e *Engine) Search(text string, opts SearchOptions) ([]SearchResult, error) {
	defer e.observe("search", time.Now())

	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return nil, ErrEmptyQuery
	}

	results := []SearchResult{}
	for _, ent := range e.idx.Entities(opts.Types...) {
		score, field := scoreEntity(ent, q)
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{
			EntityType:   ent.Type,
			EntityID:     ent.ID,
			DisplayName:  ent.DisplayName,
			SourcePath:   ent.SourcePath,
			Score:        score,
			MatchedField: field,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.EntityID < b.EntityID
	})
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// scoreEntity returns the best score for ent and the field that produced
// it. The first field reaching the best score wins: the id, then the
// display name, then leaves in path order.
func scoreEntity(ent model.Entity, q string) (float64, string) {
	best, field := 0.0, ""
	consider := func(score float64, name string) {
		if score > best {
			best, field = score, name
		}
	}

	id := strings.ToLower(ent.ID)
	switch {
	case id == q:
		return ScoreExactID, "entity_id"
	case strings.HasPrefix(id, q):
		consider(ScorePrefixID, "entity_id")
	case strings.Contains(id, q):
		consider(ScoreContains, "entity_id")
	}

	consider(fieldScore(ent.DisplayName, q), "display_name")
	for _, leaf := range Leaves(ent.Fields) {
		if best >= ScoreExactField {
			break
		}
		consider(fieldScore(leaf.Value, q), leaf.Path)
	}
	return best, field
}

func fieldScore(value, q string) float64 {
	v := strings.ToLower(value)
	switch {
	case v == q:
		return ScoreExactField
	case strings.Contains(v, q):
		return ScoreContains
	default:
		return 0
	}
}

// Leaf is one scalar value in a field tree.
type Leaf struct {
	Path  string
	Value string
}

// Leaves flattens fields into scalar leaves in path order. Nested mapping
// keys are joined with dots; sequence elements share their parent's path.
func Leaves(fields map[string]interface{}) []Leaf {
	var out []Leaf
	var walk func(prefix string, v interface{})
	walk = func(prefix string, v interface{}) {
		switch val := v.(type) {
		case map[string]interface{}:
			for _, k := range schema.SortedKeys(val) {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				walk(p, val[k])
			}
		case []interface{}:
			for _, item := range val {
				walk(prefix, item)
			}
		default:
			if s, ok := schema.Scalar(val); ok {
				out = append(out, Leaf{Path: prefix, Value: s})
			}
		}
	}
	walk("", fields)
	return out
}

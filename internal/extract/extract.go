package extract

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/model"
)

// Result is everything one document contributes to the index.
type Result struct {
	Path       string
	Entities   []model.Entity
	References []model.Reference

	// Mtime is the document's modification time when it was read. Zero when
	// unknown.
	Mtime time.Time
}

// Document extracts entities and references from a parsed document. A
// document that is not a mapping (or, for multi-entity types, a list of
// mappings) yields nothing.
func Document(doc *content.Document) Result {
	res := Data(doc.Type, doc.Path, doc.Data, doc.Node)
	res.Mtime = doc.Mtime
	return res
}

// Data extracts from already decoded content. node may be nil; it is only
// used to record where each entity starts.
func Data(t model.ContentType, path string, data interface{}, node *yaml.Node) Result {
	res := Result{Path: path}
	pk, ok := PrimaryKey(t)
	if !ok {
		return res
	}

	recs, _ := Records(t, data, node)
	for _, rec := range recs {
		id, ok := ScalarID(rec.Fields[pk])
		if !ok {
			continue
		}
		ent := model.Entity{
			Type:        t,
			ID:          id,
			DisplayName: DisplayName(rec.Fields, id),
			SourcePath:  path,
			Line:        rec.Line,
			Fields:      rec.Fields,
		}
		res.Entities = append(res.Entities, ent)
		res.References = append(res.References, References(ent)...)
	}
	return res
}

// Record is one entity-shaped mapping of a document and the line it starts
// on (0 when unknown).
type Record struct {
	Fields map[string]interface{}
	Line   int
}

// Records splits a document into per-entity mappings whether or not they
// carry a primary key. ok is false when the document has the wrong shape for
// t: not a mapping, or a list for a single-entity type.
func Records(t model.ContentType, data interface{}, node *yaml.Node) (recs []Record, ok bool) {
	node = contentNode(node)
	switch v := data.(type) {
	case map[string]interface{}:
		if key, ok := listKeys[t]; ok {
			if list, ok := v[key].([]interface{}); ok {
				return listRecords(list, mappingValue(node, key)), true
			}
		}
		return []Record{{Fields: v, Line: nodeLine(node, 1)}}, true
	case []interface{}:
		if !IsMultiEntity(t) {
			return nil, false
		}
		return listRecords(v, node), true
	default:
		return nil, false
	}
}

func listRecords(list []interface{}, node *yaml.Node) []Record {
	out := []Record{}
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		line := 0
		if node != nil && node.Kind == yaml.SequenceNode && i < len(node.Content) {
			line = node.Content[i].Line
		}
		out = append(out, Record{Fields: m, Line: line})
	}
	return out
}

func contentNode(node *yaml.Node) *yaml.Node {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	return node
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func nodeLine(node *yaml.Node, fallback int) int {
	if node == nil || node.Line == 0 {
		return fallback
	}
	return node.Line
}

// ScalarID converts a primary-key value to an id. Strings are trimmed;
// integers and floats are formatted; anything else, or an empty result, is
// not an id.
func ScalarID(v interface{}) (string, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", false
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return "", false
	}
	return s, s != ""
}

// DisplayName picks name, then title, then the id.
func DisplayName(fields map[string]interface{}, id string) string {
	for _, key := range []string{"name", "title"} {
		switch v := fields[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case int, int64, float64:
			return fmt.Sprint(v)
		}
	}
	return id
}

// References applies the relationship table to one entity.
func References(ent model.Entity) []model.Reference {
	var out []model.Reference
	emit := func(field string, target model.ContentType, ids []string) {
		for _, id := range ids {
			out = append(out, model.Reference{
				SourceType: ent.Type,
				SourceID:   ent.ID,
				FieldPath:  field,
				TargetType: target,
				TargetID:   id,
				SourcePath: ent.SourcePath,
			})
		}
	}

	for _, rule := range RulesFor(ent.Type) {
		if parent, ok := strings.CutSuffix(rule.Field, ".*"); ok {
			m, ok := ent.Fields[parent].(map[string]interface{})
			if !ok {
				continue
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				emit(parent+"."+k, rule.Target, stringValues(m[k]))
			}
			continue
		}
		emit(rule.Field, rule.Target, stringValues(ent.Fields[rule.Field]))
	}
	return out
}

// stringValues returns the non-empty strings in a string or list value.
// Other element types are not references.
func stringValues(v interface{}) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []interface{}:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

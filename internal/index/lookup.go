package index

import (
	"sort"

	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/model"
)

// Entity returns the canonical entity for key: the one from the
// lexicographically smallest source path.
func (idx *Index) Entity(key model.EntityKey) (model.Entity, bool) {
	es := idx.entities[key]
	if len(es) == 0 {
		return model.Entity{}, false
	}
	return es[0], true
}

// Has reports whether any document defines key.
func (idx *Index) Has(key model.EntityKey) bool {
	return len(idx.entities[key]) > 0
}

// Duplicates returns every entity sharing key beyond the canonical one.
func (idx *Index) Duplicates(key model.EntityKey) []model.Entity {
	es := idx.entities[key]
	if len(es) < 2 {
		return nil
	}
	out := make([]model.Entity, len(es)-1)
	copy(out, es[1:])
	return out
}

// Keys returns every entity key in (type, id) order.
func (idx *Index) Keys() []model.EntityKey {
	out := make([]model.EntityKey, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Entities returns the canonical entity of every key, optionally restricted
// to some types, in (type, id) order.
func (idx *Index) Entities(types ...model.ContentType) []model.Entity {
	want := map[model.ContentType]bool{}
	for _, t := range types {
		want[t] = true
	}
	var out []model.Entity
	for _, k := range idx.keys {
		if len(want) > 0 && !want[k.Type] {
			continue
		}
		out = append(out, idx.entities[k][0])
	}
	return out
}

// Forward returns the edges leaving key.
func (idx *Index) Forward(key model.EntityKey) []model.Reference {
	return cloneSlice(idx.forward[key])
}

// Reverse returns the edges arriving at key.
func (idx *Index) Reverse(key model.EntityKey) []model.Reference {
	return cloneSlice(idx.reverse[key])
}

// IncomingCount returns the number of edges arriving at key.
func (idx *Index) IncomingCount(key model.EntityKey) int {
	return len(idx.reverse[key])
}

// References returns every edge in the index in CompareReferences order.
func (idx *Index) References() []model.Reference {
	var out []model.Reference
	for _, refs := range idx.forward {
		out = append(out, refs...)
	}
	sortRefs(out)
	return out
}

// Dangling returns every edge whose target is not defined by any document.
func (idx *Index) Dangling() []model.Reference {
	var out []model.Reference
	for target, refs := range idx.reverse {
		if !idx.Has(target) {
			out = append(out, refs...)
		}
	}
	sortRefs(out)
	return out
}

// Document returns what path contributed, if it is indexed.
func (idx *Index) Document(path string) (extract.Result, bool) {
	res, ok := idx.docs[path]
	return res, ok
}

// Documents returns the indexed document paths in order. Failed documents
// are not included.
func (idx *Index) Documents() []string {
	out := make([]string, 0, len(idx.docs))
	for p := range idx.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Failed returns parse failures ordered by path.
func (idx *Index) Failed() []*model.ParseError {
	out := make([]*model.ParseError, 0, len(idx.failed))
	for _, pe := range idx.failed {
		out = append(out, pe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FailedFor returns the parse failure recorded for path, if any.
func (idx *Index) FailedFor(path string) (*model.ParseError, bool) {
	pe, ok := idx.failed[path]
	return pe, ok
}

// Stats counts the index contents.
func (idx *Index) Stats() Stats {
	s := Stats{
		Documents: len(idx.docs),
		Failed:    len(idx.failed),
		Entities:  len(idx.keys),
	}
	for _, es := range idx.entities {
		s.Duplicates += len(es) - 1
	}
	for target, refs := range idx.reverse {
		s.References += len(refs)
		if !idx.Has(target) {
			s.Dangling += len(refs)
		}
	}
	return s
}

func cloneSlice(in []model.Reference) []model.Reference {
	out := make([]model.Reference, len(in))
	copy(out, in)
	return out
}

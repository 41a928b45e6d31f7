// Package index holds the reference graph: every extracted entity, and the
// forward and reverse edge lists between them. An Index is immutable once
// built; incremental updates return a new Index sharing unchanged state with
// the old one, so readers holding an Index never observe a partial update.
package index

import (
	"sort"

	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/model"
)

// Index is an immutable snapshot of the reference graph.
type Index struct {
	docs   map[string]extract.Result
	failed map[string]*model.ParseError

	// entities holds every entity sharing a key, canonical first.
	entities map[model.EntityKey][]model.Entity
	forward  map[model.EntityKey][]model.Reference
	reverse  map[model.EntityKey][]model.Reference

	// keys is every entity key in (type, id) order.
	keys []model.EntityKey
}

// Stats summarises an index.
type Stats struct {
	Documents  int `json:"documents"`
	Failed     int `json:"failed"`
	Entities   int `json:"entities"`
	Duplicates int `json:"duplicates"`
	References int `json:"references"`
	Dangling   int `json:"dangling"`
}

// Empty returns an index with no documents.
func Empty() *Index {
	return &Index{
		docs:     map[string]extract.Result{},
		failed:   map[string]*model.ParseError{},
		entities: map[model.EntityKey][]model.Entity{},
		forward:  map[model.EntityKey][]model.Reference{},
		reverse:  map[model.EntityKey][]model.Reference{},
	}
}

// Build constructs an index from per-document extraction results and the
// documents that failed to parse. The result does not depend on the order
// of either slice.
func Build(results []extract.Result, failed []*model.ParseError) *Index {
	idx := Empty()
	for _, res := range results {
		idx.docs[res.Path] = res
		for _, e := range res.Entities {
			idx.entities[e.Key()] = append(idx.entities[e.Key()], e)
		}
		for _, r := range res.References {
			idx.forward[r.Source()] = append(idx.forward[r.Source()], r)
			idx.reverse[r.Target()] = append(idx.reverse[r.Target()], r)
		}
	}
	for _, pe := range failed {
		idx.failed[pe.Path] = pe
	}
	for k := range idx.entities {
		sortEntities(idx.entities[k])
	}
	for k := range idx.forward {
		sortRefs(idx.forward[k])
	}
	for k := range idx.reverse {
		sortRefs(idx.reverse[k])
	}
	idx.keys = sortedKeys(idx.entities)
	return idx
}

// WithDocument returns a new index in which path's previous contribution (or
// parse failure) is replaced by res.
func (idx *Index) WithDocument(res extract.Result) *Index {
	next := idx.without(res.Path)
	next.docs[res.Path] = res

	touched := map[model.EntityKey]bool{}
	for _, e := range res.Entities {
		k := e.Key()
		next.entities[k] = append(cloneEntities(next.entities[k]), e)
		touched[k] = true
	}
	for k := range touched {
		sortEntities(next.entities[k])
	}

	fwd := map[model.EntityKey]bool{}
	rev := map[model.EntityKey]bool{}
	for _, r := range res.References {
		if !fwd[r.Source()] {
			next.forward[r.Source()] = cloneRefs(next.forward[r.Source()])
			fwd[r.Source()] = true
		}
		if !rev[r.Target()] {
			next.reverse[r.Target()] = cloneRefs(next.reverse[r.Target()])
			rev[r.Target()] = true
		}
		next.forward[r.Source()] = append(next.forward[r.Source()], r)
		next.reverse[r.Target()] = append(next.reverse[r.Target()], r)
	}
	for k := range fwd {
		sortRefs(next.forward[k])
	}
	for k := range rev {
		sortRefs(next.reverse[k])
	}

	if len(touched) > 0 {
		next.keys = sortedKeys(next.entities)
	}
	return next
}

// WithFailure returns a new index in which path contributes nothing and is
// recorded as failed.
func (idx *Index) WithFailure(pe *model.ParseError) *Index {
	next := idx.without(pe.Path)
	next.failed[pe.Path] = pe
	return next
}

// WithoutDocument returns a new index with every trace of path removed.
func (idx *Index) WithoutDocument(path string) *Index {
	return idx.without(path)
}

// without copies the index minus path's contribution. Maps are copied;
// only the slices that lose elements are reallocated.
func (idx *Index) without(path string) *Index {
	next := &Index{
		docs:     make(map[string]extract.Result, len(idx.docs)),
		failed:   make(map[string]*model.ParseError, len(idx.failed)),
		entities: make(map[model.EntityKey][]model.Entity, len(idx.entities)),
		forward:  make(map[model.EntityKey][]model.Reference, len(idx.forward)),
		reverse:  make(map[model.EntityKey][]model.Reference, len(idx.reverse)),
		keys:     idx.keys,
	}
	for k, v := range idx.docs {
		next.docs[k] = v
	}
	for k, v := range idx.failed {
		next.failed[k] = v
	}
	for k, v := range idx.entities {
		next.entities[k] = v
	}
	for k, v := range idx.forward {
		next.forward[k] = v
	}
	for k, v := range idx.reverse {
		next.reverse[k] = v
	}

	delete(next.failed, path)
	old, ok := idx.docs[path]
	if !ok {
		return next
	}
	delete(next.docs, path)

	removedKey := false
	for _, e := range old.Entities {
		k := e.Key()
		kept := filterEntities(next.entities[k], path)
		if len(kept) == 0 {
			delete(next.entities, k)
			removedKey = true
		} else {
			next.entities[k] = kept
		}
	}
	for _, r := range old.References {
		dropRefs(next.forward, r.Source(), path)
		dropRefs(next.reverse, r.Target(), path)
	}
	if removedKey {
		next.keys = sortedKeys(next.entities)
	}
	return next
}

func filterEntities(in []model.Entity, path string) []model.Entity {
	var out []model.Entity
	for _, e := range in {
		if e.SourcePath != path {
			out = append(out, e)
		}
	}
	return out
}

func dropRefs(m map[model.EntityKey][]model.Reference, k model.EntityKey, path string) {
	in, ok := m[k]
	if !ok {
		return
	}
	var out []model.Reference
	for _, r := range in {
		if r.SourcePath != path {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		delete(m, k)
		return
	}
	m[k] = out
}

func cloneEntities(in []model.Entity) []model.Entity {
	out := make([]model.Entity, len(in), len(in)+1)
	copy(out, in)
	return out
}

func cloneRefs(in []model.Reference) []model.Reference {
	out := make([]model.Reference, len(in), len(in)+4)
	copy(out, in)
	return out
}

func sortEntities(es []model.Entity) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].SourcePath != es[j].SourcePath {
			return es[i].SourcePath < es[j].SourcePath
		}
		return es[i].Line < es[j].Line
	})
}

func sortRefs(rs []model.Reference) {
	sort.SliceStable(rs, func(i, j int) bool {
		return model.CompareReferences(rs[i], rs[j]) < 0
	})
}

func sortedKeys(m map[model.EntityKey][]model.Entity) []model.EntityKey {
	keys := make([]model.EntityKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

package query

import (
	"sort"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/aidanlsb/cstudio/internal/model"
)

// BrokenReference is an edge whose target does not exist.
type BrokenReference struct {
	model.Reference

	// Suggestion is the closest existing id of the target type, if any is
	// close enough.
	Suggestion string `json:"suggestion,omitempty"`
}

// EntitySummary identifies an entity in analytics listings.
type EntitySummary struct {
	EntityType  model.ContentType `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	DisplayName string            `json:"display_name"`
	SourcePath  string            `json:"source_path"`
}

// ReferencedEntity is an entity with its incoming edge count.
type ReferencedEntity struct {
	EntitySummary
	Count int `json:"reference_count"`
}

// AnalyticsResult summarises the health of the whole reference graph.
type AnalyticsResult struct {
	TotalEntities          int                `json:"total_entities"`
	EntitiesByType         map[string]int     `json:"entities_by_type"`
	BrokenReferenceCount   int                `json:"broken_reference_count"`
	BrokenReferences       []BrokenReference  `json:"broken_references"`
	OrphanedEntityCount    int                `json:"orphaned_entity_count"`
	OrphanedEntities       []EntitySummary    `json:"orphaned_entities"`
	MostReferencedEntities []ReferencedEntity `json:"most_referenced_entities"`
}

// Analytics reports dangling edges, entities nothing references, and the
// most referenced entities. Whether an orphan matters is the caller's call;
// every one is reported.
func (e *Engine) Analytics() *AnalyticsResult {
	defer e.observe("analytics", time.Now())

	res := &AnalyticsResult{
		EntitiesByType:         make(map[string]int),
		BrokenReferences:       []BrokenReference{},
		OrphanedEntities:       []EntitySummary{},
		MostReferencedEntities: []ReferencedEntity{},
	}
	for _, t := range model.AllTypes() {
		res.EntitiesByType[string(t)] = 0
	}

	idsByType := make(map[model.ContentType][]string)
	var referenced []ReferencedEntity
	for _, ent := range e.idx.Entities() {
		res.TotalEntities++
		res.EntitiesByType[string(ent.Type)]++
		idsByType[ent.Type] = append(idsByType[ent.Type], ent.ID)

		summary := summarize(ent)
		n := e.idx.IncomingCount(ent.Key())
		if n == 0 {
			res.OrphanedEntities = append(res.OrphanedEntities, summary)
			continue
		}
		referenced = append(referenced, ReferencedEntity{EntitySummary: summary, Count: n})
	}
	res.OrphanedEntityCount = len(res.OrphanedEntities)

	for _, ref := range e.idx.Dangling() {
		res.BrokenReferences = append(res.BrokenReferences, BrokenReference{
			Reference:  ref,
			Suggestion: suggest(ref.TargetID, idsByType[ref.TargetType], e.opts.SuggestThreshold),
		})
	}
	res.BrokenReferenceCount = len(res.BrokenReferences)

	// Entities() is already in (type, id) order, so a stable sort on count
	// keeps that as the tie-break.
	sort.SliceStable(referenced, func(i, j int) bool {
		return referenced[i].Count > referenced[j].Count
	})
	if len(referenced) > e.opts.TopReferenced {
		referenced = referenced[:e.opts.TopReferenced]
	}
	res.MostReferencedEntities = append(res.MostReferencedEntities, referenced...)
	return res
}

func summarize(ent model.Entity) EntitySummary {
	return EntitySummary{
		EntityType:  ent.Type,
		EntityID:    ent.ID,
		DisplayName: ent.DisplayName,
		SourcePath:  ent.SourcePath,
	}
}

// suggest returns the candidate most similar to id, or "" when none reaches
// threshold. Candidates are in sorted order, so ties go to the smallest.
func suggest(id string, candidates []string, threshold float64) string {
	best, bestScore := "", threshold
	for _, c := range candidates {
		if score := matchr.JaroWinkler(id, c, false); score >= bestScore && (best == "" || score > bestScore) {
			best, bestScore = c, score
		}
	}
	return best
}

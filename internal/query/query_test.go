package query

import (
	"errors"
	"sort"
	"testing"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/schema"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

func buildIndex(t *testing.T, files map[string]string) *index.Index {
	t.Helper()
	var results []extract.Result
	for path, body := range files {
		doc, err := content.ParseDocument(path, []byte(body))
		if err != nil {
			t.Fatalf("ParseDocument(%s): %v", path, err)
		}
		results = append(results, extract.Document(doc))
	}
	return index.Build(results, nil)
}

func sampleEngine(t *testing.T) *Engine {
	t.Helper()
	return New(buildIndex(t, testutil.SampleWorld()), Options{})
}

func TestSearchScoring(t *testing.T) {
	files := map[string]string{
		"classes/warrior.yaml":  "class_id: warrior\nname: Fighter\n",
		"npcs/chief.yaml":       "npc_id: chief\nname: Warrior Chief\n",
		"npcs/warriorbot.yaml":  "npc_id: warriorbot\n",
		"items/badge.yaml":      "item_id: badge\nname: Badge\nclass: warrior\n",
		"abilities/slash.yaml":  "ability_id: slash\ntags: [melee, Warrior-only]\n",
		"quests/unrelated.yaml": "quest_id: unrelated\n",
		"rooms/hall.yaml":       "room_id: hall\nexits:\n  north: warrior_camp\n",
	}
	e := New(buildIndex(t, files), Options{})

	results, err := e.Search("Warrior", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}

	type hit struct {
		key   string
		score float64
		field string
	}
	var got []hit
	for _, r := range results {
		got = append(got, hit{string(r.EntityType) + "/" + r.EntityID, r.Score, r.MatchedField})
	}
	want := []hit{
		{"classes/warrior", ScoreExactID, "entity_id"},
		{"items/badge", ScoreExactField, "class"},
		{"npcs/warriorbot", ScorePrefixID, "entity_id"},
		{"abilities/slash", ScoreContains, "tags"},
		{"npcs/chief", ScoreContains, "display_name"},
		{"rooms/hall", ScoreContains, "exits.north"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSearchScenario(t *testing.T) {
	files := map[string]string{
		"classes/warrior.yaml": "class_id: warrior\n",
		"npcs/chief.yaml":      "npc_id: chief\nname: Warrior Chief\n",
	}
	e := New(buildIndex(t, files), Options{})
	results, err := e.Search("warrior", SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].EntityID != "warrior" || results[0].Score != 10.0 {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].EntityID != "chief" || results[1].Score != 1.0 {
		t.Errorf("second = %+v", results[1])
	}
}

func TestSearchOptionsAndErrors(t *testing.T) {
	e := sampleEngine(t)

	if _, err := e.Search("   ", SearchOptions{}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query error = %v", err)
	}

	rooms, err := e.Search("t", SearchOptions{Types: []model.ContentType{model.Rooms}})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rooms {
		if r.EntityType != model.Rooms {
			t.Errorf("type filter leaked %+v", r)
		}
	}

	limited, _ := e.Search("a", SearchOptions{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit ignored: %d results", len(limited))
	}

	none, err := e.Search("tavern", SearchOptions{Types: []model.ContentType{"spells"}})
	if err != nil || len(none) != 0 {
		t.Errorf("unknown type = %v, %v", none, err)
	}
}

func TestSearchTiesAreOrdered(t *testing.T) {
	files := map[string]string{
		"rooms/b.yaml": "room_id: b\nname: shared\n",
		"items/z.yaml": "item_id: z\nname: shared\n",
		"items/a.yaml": "item_id: a\nname: shared\n",
	}
	e := New(buildIndex(t, files), Options{})
	results, _ := e.Search("shared", SearchOptions{})
	var order []string
	for _, r := range results {
		order = append(order, string(r.EntityType)+"/"+r.EntityID)
	}
	if !sort.StringsAreSorted(order) || len(order) != 3 {
		t.Errorf("order = %v", order)
	}
}

func TestDependenciesScenario(t *testing.T) {
	e := New(buildIndex(t, map[string]string{
		"npcs/goblin.yaml":     "npc_id: goblin\nfaction_id: bandits\n",
		"classes/warrior.yaml": "class_id: warrior\navailable_abilities: [slash, parry]\n",
		"abilities/slash.yaml": "ability_id: slash\n",
	}), Options{})

	dep, err := e.Dependencies(model.Abilities, "slash")
	if err != nil {
		t.Fatal(err)
	}
	if len(dep.ReferencedBy) != 1 {
		t.Fatalf("ReferencedBy = %v", dep.ReferencedBy)
	}
	if src := dep.ReferencedBy[0].Source(); src != (model.EntityKey{Type: model.Classes, ID: "warrior"}) {
		t.Errorf("source = %v", src)
	}
	if dep.SafeToDelete || !dep.Exists {
		t.Errorf("SafeToDelete = %v, Exists = %v", dep.SafeToDelete, dep.Exists)
	}
	if len(dep.BlockingReferences) != 1 {
		t.Errorf("BlockingReferences = %v", dep.BlockingReferences)
	}

	warrior, _ := e.Dependencies(model.Classes, "warrior")
	if len(warrior.References) != 2 || !warrior.SafeToDelete || len(warrior.BlockingReferences) != 0 {
		t.Errorf("warrior = %+v", warrior)
	}
}

func TestDependenciesProperties(t *testing.T) {
	e := sampleEngine(t)
	idx := e.Index()

	for _, ent := range idx.Entities() {
		dep, err := e.Dependencies(ent.Type, ent.ID)
		if err != nil {
			t.Fatal(err)
		}
		if dep.SafeToDelete != (len(dep.ReferencedBy) == 0) {
			t.Errorf("%s: SafeToDelete inconsistent", ent.Key())
		}
		for _, ref := range dep.References {
			target, _ := e.Dependencies(ref.TargetType, ref.TargetID)
			found := false
			for _, back := range target.ReferencedBy {
				if back == ref {
					found = true
				}
			}
			if !found {
				t.Errorf("edge %+v missing from target's referenced_by", ref)
			}
		}
	}

	// An entity with no outgoing edges has none listed and never shows up
	// as the source of a broken reference.
	dep, _ := e.Dependencies(model.Items, "sword")
	if len(dep.References) != 0 {
		t.Errorf("sword references = %v", dep.References)
	}
	for _, b := range e.Analytics().BrokenReferences {
		if b.Source() == (model.EntityKey{Type: model.Items, ID: "sword"}) {
			t.Errorf("sword in broken references")
		}
	}
}

func TestDependenciesInputs(t *testing.T) {
	e := sampleEngine(t)
	if _, err := e.Dependencies("", "x"); !errors.Is(err, ErrEmptyType) {
		t.Errorf("empty type error = %v", err)
	}
	if _, err := e.Dependencies(model.Rooms, " "); !errors.Is(err, ErrEmptyID) {
		t.Errorf("empty id error = %v", err)
	}
	dep, err := e.Dependencies("spells", "fireball")
	if err != nil {
		t.Fatal(err)
	}
	if dep.Exists || !dep.SafeToDelete || len(dep.References) != 0 {
		t.Errorf("unknown type = %+v", dep)
	}

	// Referrers of a dangling target are still listed.
	upstairs, _ := e.Dependencies(model.Rooms, "tavern_upstairs")
	if upstairs.Exists || len(upstairs.ReferencedBy) != 1 {
		t.Errorf("dangling target = %+v", upstairs)
	}
}

func TestAnalyticsScenario(t *testing.T) {
	e := New(buildIndex(t, map[string]string{
		"rooms/tavern.yaml": "room_id: tavern\nexits:\n  north: tavern_upstairs\n",
	}), Options{})
	a := e.Analytics()

	if a.BrokenReferenceCount != 1 || len(a.BrokenReferences) != 1 {
		t.Fatalf("broken = %+v", a.BrokenReferences)
	}
	b := a.BrokenReferences[0]
	if b.SourceType != model.Rooms || b.SourceID != "tavern" || b.TargetID != "tavern_upstairs" {
		t.Errorf("broken reference = %+v", b)
	}
	if b.Suggestion != "tavern" {
		t.Errorf("Suggestion = %q, want tavern", b.Suggestion)
	}
}

func TestAnalytics(t *testing.T) {
	e := New(buildIndex(t, testutil.SampleWorld()), Options{TopReferenced: 2})
	a := e.Analytics()

	if a.TotalEntities != 9 {
		t.Errorf("TotalEntities = %d", a.TotalEntities)
	}
	if len(a.EntitiesByType) != len(model.AllTypes()) || a.EntitiesByType["rooms"] != 2 || a.EntitiesByType["quests"] != 0 {
		t.Errorf("EntitiesByType = %v", a.EntitiesByType)
	}
	if a.BrokenReferenceCount != 4 {
		t.Errorf("BrokenReferenceCount = %d", a.BrokenReferenceCount)
	}

	var orphans []string
	for _, o := range a.OrphanedEntities {
		orphans = append(orphans, string(o.EntityType)+"/"+o.EntityID)
	}
	wantOrphans := []string{"classes/warrior", "item_instances/sword_on_bar", "npc_spawns/goblin_square"}
	if len(orphans) != len(wantOrphans) || a.OrphanedEntityCount != len(wantOrphans) {
		t.Fatalf("orphans = %v", orphans)
	}
	for i := range wantOrphans {
		if orphans[i] != wantOrphans[i] {
			t.Errorf("orphan %d = %s, want %s", i, orphans[i], wantOrphans[i])
		}
	}

	if len(a.MostReferencedEntities) != 2 {
		t.Fatalf("MostReferencedEntities = %+v", a.MostReferencedEntities)
	}
	top := a.MostReferencedEntities[0]
	if top.EntityType != model.Areas || top.EntityID != "town" || top.Count != 2 {
		t.Errorf("top = %+v", top)
	}
	if a.MostReferencedEntities[0].Count < a.MostReferencedEntities[1].Count {
		t.Errorf("not sorted by count")
	}
}

func TestValidate(t *testing.T) {
	sch, err := schema.Parse([]byte(testutil.RoomSchema()))
	if err != nil {
		t.Fatal(err)
	}
	sch.Type = model.Rooms
	e := New(buildIndex(t, testutil.SampleWorld()), Options{Schemas: staticSchemas{model.Rooms: sch}})

	t.Run("syntax error only", func(t *testing.T) {
		errs, err := e.Validate([]byte("room_id: x\nexits: [north\n"), model.Rooms, "rooms/x.yaml")
		if err != nil {
			t.Fatal(err)
		}
		if len(errs) != 1 || errs[0].Kind != model.KindSyntax || errs[0].Line == 0 {
			t.Errorf("errs = %+v", errs)
		}
	})

	t.Run("schema and reference findings in line order", func(t *testing.T) {
		doc := "room_id: cellar\nlight: pitch\nexits:\n  up: tavern\n  down: catacombs\n"
		errs, err := e.Validate([]byte(doc), model.Rooms, "rooms/cellar.yaml")
		if err != nil {
			t.Fatal(err)
		}
		type finding struct {
			kind  model.ErrorKind
			field string
			line  int
		}
		var got []finding
		for _, ve := range errs {
			got = append(got, finding{ve.Kind, ve.Field, ve.Line})
			if ve.Path != "rooms/cellar.yaml" {
				t.Errorf("Path = %q", ve.Path)
			}
		}
		want := []finding{
			{model.KindSchema, "light", 2},
			{model.KindReference, "exits.down", 5},
			{model.KindSchema, "name", 0},
		}
		if len(got) != len(want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("finding %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("missing primary key", func(t *testing.T) {
		errs, _ := e.Validate([]byte("name: Nameless\n"), model.Items, "items/nameless.yaml")
		if len(errs) != 1 || errs[0].Kind != model.KindSchema || errs[0].Field != "item_id" {
			t.Errorf("errs = %+v", errs)
		}
	})

	t.Run("suggestion", func(t *testing.T) {
		errs, _ := e.Validate([]byte("npc_id: orc\nfaction_id: x\ndialogue_id: goblin_greting\n"), model.NPCs, "")
		var found bool
		for _, ve := range errs {
			if ve.Field == "dialogue_id" {
				found = true
			}
		}
		if !found {
			t.Errorf("missing dialogue reference error: %+v", errs)
		}
		slashy, _ := e.Validate([]byte("class_id: mage\navailable_abilities: [slahs]\n"), model.Classes, "")
		if len(slashy) != 1 || slashy[0].Suggestion != "did you mean 'slash'?" {
			t.Errorf("errs = %+v", slashy)
		}
	})

	t.Run("duplicate id warning", func(t *testing.T) {
		errs, _ := e.Validate([]byte("item_id: sword\n"), model.Items, "items/copy.yaml")
		if len(errs) != 1 || errs[0].Kind != model.KindValidation || errs[0].Severity != model.SeverityWarning {
			t.Errorf("errs = %+v", errs)
		}
		own, _ := e.Validate([]byte("item_id: sword\n"), model.Items, "items/sword.yaml")
		if len(own) != 0 {
			t.Errorf("re-validating the owning document warned: %+v", own)
		}
	})

	t.Run("multi-entity lines", func(t *testing.T) {
		doc := "- instance_id: a\n  item_id: sword\n- instance_id: b\n  item_id: missing\n"
		errs, _ := e.Validate([]byte(doc), model.ItemInstances, "item_instances/x.yaml")
		if len(errs) != 1 || errs[0].Line != 4 {
			t.Errorf("errs = %+v", errs)
		}
	})

	t.Run("wrong shape", func(t *testing.T) {
		errs, _ := e.Validate([]byte("- room_id: a\n"), model.Rooms, "")
		if len(errs) != 1 || errs[0].Kind != model.KindValidation {
			t.Errorf("errs = %+v", errs)
		}
	})

	t.Run("unknown and empty types", func(t *testing.T) {
		errs, err := e.Validate([]byte("x: 1\n"), "spells", "")
		if err != nil || len(errs) != 0 {
			t.Errorf("unknown type = %v, %v", errs, err)
		}
		if _, err := e.Validate(nil, "", ""); !errors.Is(err, ErrEmptyType) {
			t.Errorf("empty type error = %v", err)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		errs, err := e.Validate([]byte("# nothing yet\n"), model.Rooms, "")
		if err != nil || len(errs) != 0 {
			t.Errorf("errs = %v, %v", errs, err)
		}
	})
}

type staticSchemas map[model.ContentType]*schema.Schema

func (s staticSchemas) Get(t model.ContentType) (*schema.Schema, error) {
	return s[t], nil
}

func TestValidatorLocate(t *testing.T) {
	v := &validator{lines: []string{
		"room_id: tavern",
		"exits_extra: x",
		"exits:",
		"  north: upstairs",
		"spawns:",
		`  - "npc_id": goblin`,
		"  - npc_id : orc",
	}}
	tests := []struct {
		field string
		from  int
		want  int
	}{
		{"room_id", 0, 1},
		{"exits", 1, 3},
		{"exits.north", 1, 4},
		{"spawns[0].npc_id", 1, 6},
		{"npc_id", 7, 7},
		{"name", 1, 0},
		{"", 1, 0},
	}
	for _, tt := range tests {
		if got := v.locate(tt.field, tt.from); got != tt.want {
			t.Errorf("locate(%q, %d) = %d, want %d", tt.field, tt.from, got, tt.want)
		}
	}
}

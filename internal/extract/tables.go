// Package extract turns parsed documents into entities and the references
// they declare. Which field is an entity's id, and which fields reference
// other entities, are fixed tables rather than a scan of all strings.
package extract

import "github.com/aidanlsb/cstudio/internal/model"

var primaryKeys = map[model.ContentType]string{
	model.Rooms:         "room_id",
	model.Items:         "item_id",
	model.NPCs:          "npc_id",
	model.Quests:        "quest_id",
	model.Abilities:     "ability_id",
	model.Classes:       "class_id",
	model.Factions:      "faction_id",
	model.Dialogues:     "dialogue_id",
	model.Triggers:      "trigger_id",
	model.NPCSpawns:     "spawn_id",
	model.ItemInstances: "instance_id",
	model.QuestChains:   "chain_id",
	model.Areas:         "area_id",
}

// listKeys names the mapping key that may hold the entity list of a
// multi-entity type.
var listKeys = map[model.ContentType]string{
	model.NPCSpawns:     "spawns",
	model.ItemInstances: "instances",
}

// PrimaryKey returns the field holding the id of entities of type t.
func PrimaryKey(t model.ContentType) (string, bool) {
	key, ok := primaryKeys[t]
	return key, ok
}

// IsMultiEntity reports whether documents of type t may hold several
// entities.
func IsMultiEntity(t model.ContentType) bool {
	_, ok := listKeys[t]
	return ok
}

// Rule is one row of the relationship table. A Field ending in ".*" matches
// every key of the named mapping.
type Rule struct {
	Source model.ContentType `json:"source_type"`
	Field  string            `json:"field"`
	Target model.ContentType `json:"target_type"`
}

var rules = []Rule{
	{Source: model.Rooms, Field: "exits.*", Target: model.Rooms},
	{Source: model.Rooms, Field: "area_id", Target: model.Areas},
	{Source: model.Classes, Field: "available_abilities", Target: model.Abilities},
	{Source: model.NPCs, Field: "faction_id", Target: model.Factions},
	{Source: model.NPCs, Field: "dialogue_id", Target: model.Dialogues},
	{Source: model.NPCSpawns, Field: "npc_id", Target: model.NPCs},
	{Source: model.NPCSpawns, Field: "room_id", Target: model.Rooms},
	{Source: model.ItemInstances, Field: "item_id", Target: model.Items},
	{Source: model.ItemInstances, Field: "room_id", Target: model.Rooms},
	{Source: model.QuestChains, Field: "quests", Target: model.Quests},
}

// Rules returns a copy of the relationship table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RulesFor returns the rules whose source is t, in table order.
func RulesFor(t model.ContentType) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Source == t {
			out = append(out, r)
		}
	}
	return out
}

// Package model defines the canonical types shared by every layer of the
// content index: extraction, the reference index, queries, validation, the
// snapshot store, CLI output and the HTTP API.
package model

import "sort"

// ContentType is one of the closed set of content categories. Each category
// lives in its own directory of the same name under the content root.
type ContentType string

const (
	Rooms         ContentType = "rooms"
	Items         ContentType = "items"
	NPCs          ContentType = "npcs"
	Quests        ContentType = "quests"
	Abilities     ContentType = "abilities"
	Classes       ContentType = "classes"
	Factions      ContentType = "factions"
	Dialogues     ContentType = "dialogues"
	Triggers      ContentType = "triggers"
	NPCSpawns     ContentType = "npc_spawns"
	ItemInstances ContentType = "item_instances"
	QuestChains   ContentType = "quest_chains"
	Areas         ContentType = "areas"
)

var allTypes = []ContentType{
	Rooms, Items, NPCs, Quests, Abilities, Classes, Factions,
	Dialogues, Triggers, NPCSpawns, ItemInstances, QuestChains, Areas,
}

// AllTypes returns every content type in alphabetical order.
func AllTypes() []ContentType {
	out := make([]ContentType, len(allTypes))
	copy(out, allTypes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseContentType converts a directory or user-supplied name to a
// ContentType. The second return value is false for unknown names.
func ParseContentType(s string) (ContentType, bool) {
	t := ContentType(s)
	return t, t.Valid()
}

func (t ContentType) String() string { return string(t) }

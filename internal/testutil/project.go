// Package testutil provides reusable fixtures for cstudio tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestProject represents a temporary content project for testing.
type TestProject struct {
	Path  string
	t     *testing.T
	files map[string]string
}

// NewTestProject creates a new test project builder.
// Call Build() to create the actual project directory.
func NewTestProject(t *testing.T) *TestProject {
	t.Helper()
	return &TestProject{
		t:     t,
		files: make(map[string]string),
	}
}

// WithSchema sets the schema file for a content type directory.
func (p *TestProject) WithSchema(contentType, yaml string) *TestProject {
	p.files[filepath.ToSlash(filepath.Join(contentType, "_schema.yaml"))] = yaml
	return p
}

// WithFile adds a file to the project. The path is relative to the project
// root.
func (p *TestProject) WithFile(path, content string) *TestProject {
	p.files[path] = content
	return p
}

// WithStudioYAML sets the studio.yaml content for the project.
func (p *TestProject) WithStudioYAML(yaml string) *TestProject {
	p.files["studio.yaml"] = yaml
	return p
}

// Build creates the project directory and all configured files.
func (p *TestProject) Build() *TestProject {
	p.t.Helper()
	p.Path = p.t.TempDir()
	for path, content := range p.files {
		p.WriteFile(path, content)
	}
	return p
}

// WriteFile writes (or overwrites) a file after Build, creating directories
// as needed.
func (p *TestProject) WriteFile(relPath, content string) {
	p.t.Helper()
	fullPath := filepath.Join(p.Path, filepath.FromSlash(relPath))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		p.t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		p.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// RemoveFile deletes a file after Build.
func (p *TestProject) RemoveFile(relPath string) {
	p.t.Helper()
	if err := os.Remove(filepath.Join(p.Path, filepath.FromSlash(relPath))); err != nil {
		p.t.Fatalf("failed to remove %s: %v", relPath, err)
	}
}

// ReadFile reads a file from the project.
func (p *TestProject) ReadFile(relPath string) string {
	p.t.Helper()
	fullPath := filepath.Join(p.Path, filepath.FromSlash(relPath))
	content, err := os.ReadFile(fullPath)
	if err != nil {
		p.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}
	return string(content)
}

// FileExists checks if a file exists in the project.
func (p *TestProject) FileExists(relPath string) bool {
	p.t.Helper()
	_, err := os.Stat(filepath.Join(p.Path, filepath.FromSlash(relPath)))
	return err == nil
}

// RoomSchema returns a schema for the rooms directory.
func RoomSchema() string {
	return `fields:
  room_id:
    type: string
    required: true
  name:
    type: string
    required: true
  area_id: string
  exits:
    type: object
  light:
    type: enum
    values: [dark, dim, bright]
    default: bright
`
}

// SampleWorld returns a small project covering every relationship rule.
// tavern's north exit dangles; the goblin's faction and dialogue do not
// exist.
func SampleWorld() map[string]string {
	return map[string]string{
		"areas/town.yaml": "area_id: town\nname: Town\n",
		"rooms/tavern.yaml": `room_id: tavern
name: The Tavern
area_id: town
exits:
  north: tavern_upstairs
  east: square
`,
		"rooms/square.yaml": `room_id: square
name: Town Square
area_id: town
exits:
  west: tavern
`,
		"npcs/goblin.yaml": `npc_id: goblin
name: Goblin
faction_id: bandits
dialogue_id: goblin_greeting
`,
		"classes/warrior.yaml": `class_id: warrior
name: Warrior
available_abilities: [slash, parry]
`,
		"abilities/slash.yaml": "ability_id: slash\nname: Slash\n",
		"items/sword.yaml":     "item_id: sword\nname: Iron Sword\n",
		"npc_spawns/town.yaml": `spawns:
  - spawn_id: goblin_square
    npc_id: goblin
    room_id: square
`,
		"item_instances/tavern.yaml": `- instance_id: sword_on_bar
  item_id: sword
  room_id: tavern
`,
	}
}

// WithSampleWorld adds SampleWorld's files to the project.
func (p *TestProject) WithSampleWorld() *TestProject {
	for path, body := range SampleWorld() {
		p.files[path] = body
	}
	return p
}

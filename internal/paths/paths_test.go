package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDirRoot(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"./", ""},
		{"content", "content/"},
		{"content/", "content/"},
		{"/content/", "content/"},
		{"content//", "content/"},
		{"./content", "content/"},
	}
	for _, tc := range tests {
		if got := NormalizeDirRoot(tc.in); got != tc.want {
			t.Fatalf("NormalizeDirRoot(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rooms/tavern.yaml", "rooms/tavern.yaml"},
		{"./rooms/tavern.yaml", "rooms/tavern.yaml"},
		{"/rooms/tavern.yaml", "rooms/tavern.yaml"},
		{"rooms//town///tavern.yaml", "rooms/town/tavern.yaml"},
	}
	for _, tc := range tests {
		if got := NormalizeRel(tc.in); got != tc.want {
			t.Fatalf("NormalizeRel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTopDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rooms/tavern.yaml", "rooms"},
		{"rooms/town/tavern.yaml", "rooms"},
		{"tavern.yaml", ""},
		{"/npcs/goblin.yaml", "npcs"},
	}
	for _, tc := range tests {
		if got := TopDir(tc.in); got != tc.want {
			t.Fatalf("TopDir(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRel(t *testing.T) {
	root := t.TempDir()

	got, err := Rel(root, filepath.Join(root, "rooms", "tavern.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "rooms/tavern.yaml" {
		t.Errorf("got %q", got)
	}

	got, err = Rel(root, "rooms/tavern.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "rooms/tavern.yaml" {
		t.Errorf("relative input: got %q", got)
	}

	if _, err := Rel(root, filepath.Join(root, "..", "elsewhere.yaml")); !errors.Is(err, ErrPathOutsideProject) {
		t.Errorf("expected ErrPathOutsideProject, got %v", err)
	}
}

func TestValidateWithinProject(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "rooms", "a.yaml")
	if err := os.MkdirAll(filepath.Dir(inside), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inside, []byte("room_id: a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateWithinProject(root, inside); err != nil {
		t.Errorf("expected inside path to validate, got %v", err)
	}

	outside := t.TempDir()
	if err := ValidateWithinProject(root, filepath.Join(outside, "x.yaml")); !errors.Is(err, ErrPathOutsideProject) {
		t.Errorf("expected ErrPathOutsideProject, got %v", err)
	}
}

func TestIsHidden(t *testing.T) {
	if !IsHidden(".cstudio/index.db") {
		t.Error("expected .cstudio path to be hidden")
	}
	if !IsHidden("rooms/.draft.yaml") {
		t.Error("expected dotfile to be hidden")
	}
	if IsHidden("rooms/tavern.yaml") {
		t.Error("expected normal path to be visible")
	}
}

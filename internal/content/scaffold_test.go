package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/schema"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

func TestScaffoldPath(t *testing.T) {
	s, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.ScaffoldPath(model.Rooms, "Tavern Upstairs"); got != "rooms/tavern-upstairs.yaml" {
		t.Errorf("ScaffoldPath = %q", got)
	}
	if got := s.ScaffoldPath(model.Items, "!!!"); got != "items/untitled.yaml" {
		t.Errorf("ScaffoldPath = %q", got)
	}
}

func TestRenderScaffold(t *testing.T) {
	sch, err := schema.Parse([]byte(testutil.RoomSchema()))
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderScaffold("room_id", "cellar", "The Cellar", sch)
	if err != nil {
		t.Fatal(err)
	}
	want := "room_id: cellar\nname: The Cellar\nlight: bright\n"
	if string(out) != want {
		t.Errorf("RenderScaffold =\n%s\nwant\n%s", out, want)
	}

	out, err = RenderScaffold("room_id", "cellar", "", sch)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "name: \"\"") {
		t.Errorf("expected required name placeholder, got:\n%s", out)
	}
}

func TestCreateAndRemoveDocument(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	s := newStore(t, p, Options{})

	rel := s.ScaffoldPath(model.Items, "sword")
	if err := s.CreateDocument(rel, []byte("item_id: sword\n")); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	p.AssertFileContains(rel, "item_id: sword")

	if err := s.CreateDocument(rel, []byte("item_id: other\n")); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}

	if err := s.RemoveDocument(rel); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	p.AssertFileNotExists(rel)

	if err := s.RemoveDocument(rel); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.CreateDocument("notes/a.yaml", nil); !errors.Is(err, ErrNotContent) {
		t.Errorf("expected ErrNotContent, got %v", err)
	}
}

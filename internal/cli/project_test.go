package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aidanlsb/cstudio/internal/audit"
	"github.com/aidanlsb/cstudio/internal/config"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestProject(t *testing.T, path string, opts openOptions) *project {
	t.Helper()
	cfg, err := config.LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig: %v", err)
	}
	p, err := newProject(path, cfg, discard)
	if err != nil {
		t.Fatalf("newProject: %v", err)
	}
	if err := p.open(context.Background(), opts); err != nil {
		p.close()
		t.Fatalf("open: %v", err)
	}
	return p
}

func TestOpenProjectBuildsThenUsesSnapshot(t *testing.T) {
	tp := testutil.NewTestProject(t).WithSampleWorld().Build()

	p := openTestProject(t, tp.Path, openOptions{})
	if p.fromSnapshot || p.report == nil {
		t.Fatalf("first open should run a full build (fromSnapshot=%v)", p.fromSnapshot)
	}
	want := p.session.Index().Stats()
	if err := p.save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	buildID := p.session.BuildID()
	p.close()

	p = openTestProject(t, tp.Path, openOptions{})
	defer p.close()
	if !p.fromSnapshot {
		t.Fatal("second open should load the snapshot")
	}
	if p.changed() {
		t.Errorf("nothing changed on disk, refreshed = %v", p.refreshed)
	}
	if got := p.session.BuildID(); got != buildID {
		t.Errorf("BuildID = %q, want snapshot's %q", got, buildID)
	}
	if got := p.session.Index().Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestOpenProjectRefreshesStaleDocuments(t *testing.T) {
	tp := testutil.NewTestProject(t).WithSampleWorld().Build()

	p := openTestProject(t, tp.Path, openOptions{})
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	p.close()

	// Make the edit unambiguously newer than the recorded mtime.
	tp.WriteFile("rooms/square.yaml", "room_id: plaza\nname: Plaza\n")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(tp.Path, "rooms", "square.yaml"), future, future); err != nil {
		t.Fatal(err)
	}
	tp.WriteFile("items/shield.yaml", "item_id: shield\n")
	tp.RemoveFile("abilities/slash.yaml")

	p = openTestProject(t, tp.Path, openOptions{})
	defer p.close()

	want := []string{"abilities/slash.yaml", "items/shield.yaml", "rooms/square.yaml"}
	if strings.Join(p.refreshed, ",") != strings.Join(want, ",") {
		t.Errorf("refreshed = %v, want %v", p.refreshed, want)
	}
	idx := p.session.Index()
	if !idx.Has(model.EntityKey{Type: model.Rooms, ID: "plaza"}) {
		t.Error("rooms/plaza missing after refresh")
	}
	if idx.Has(model.EntityKey{Type: model.Rooms, ID: "square"}) {
		t.Error("rooms/square still indexed after its document changed id")
	}
	if !idx.Has(model.EntityKey{Type: model.Items, ID: "shield"}) {
		t.Error("new document not indexed")
	}
	if idx.Has(model.EntityKey{Type: model.Abilities, ID: "slash"}) {
		t.Error("deleted document still indexed")
	}
}

// A save after an unrelated rebuild must not mark a file edited in the
// meantime as up to date.
func TestSaveKeepsUnreadEditsStale(t *testing.T) {
	tp := testutil.NewTestProject(t).WithSampleWorld().Build()

	p := openTestProject(t, tp.Path, openOptions{})
	if err := p.save(); err != nil {
		t.Fatal(err)
	}

	tp.WriteFile("rooms/square.yaml", "room_id: plaza\nname: Plaza\nexits:\n  north: tavern\n")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(tp.Path, "rooms", "square.yaml"), future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := p.session.RebuildOne("rooms/tavern.yaml"); err != nil {
		t.Fatal(err)
	}
	if p.session.Index().Has(model.EntityKey{Type: model.Rooms, ID: "plaza"}) {
		t.Fatal("rooms/square.yaml was rebuilt before the save")
	}
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	p.close()

	p = openTestProject(t, tp.Path, openOptions{})
	defer p.close()

	if want := []string{"rooms/square.yaml"}; strings.Join(p.refreshed, ",") != strings.Join(want, ",") {
		t.Errorf("refreshed = %v, want %v", p.refreshed, want)
	}
	idx := p.session.Index()
	if !idx.Has(model.EntityKey{Type: model.Rooms, ID: "plaza"}) {
		t.Error("rooms/plaza missing: the snapshot recorded the edit as already indexed")
	}
	if idx.Has(model.EntityKey{Type: model.Rooms, ID: "square"}) {
		t.Error("rooms/square still indexed after its document changed id")
	}
}

func TestOpenProjectFullIgnoresSnapshot(t *testing.T) {
	tp := testutil.NewTestProject(t).WithSampleWorld().Build()

	p := openTestProject(t, tp.Path, openOptions{})
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	p.close()

	p = openTestProject(t, tp.Path, openOptions{full: true})
	defer p.close()
	if p.fromSnapshot || p.report == nil {
		t.Error("--full should rebuild from disk")
	}
}

func TestOpenProjectHonoursContentDir(t *testing.T) {
	tp := testutil.NewTestProject(t).
		WithStudioYAML("content_dir: world\n").
		WithFile("world/items/sword.yaml", "item_id: sword\n").
		WithFile("items/decoy.yaml", "item_id: decoy\n").
		Build()

	p := openTestProject(t, tp.Path, openOptions{})
	defer p.close()

	idx := p.session.Index()
	if !idx.Has(model.EntityKey{Type: model.Items, ID: "sword"}) {
		t.Error("items/sword under content_dir not indexed")
	}
	if idx.Has(model.EntityKey{Type: model.Items, ID: "decoy"}) {
		t.Error("document outside content_dir was indexed")
	}
	if _, err := os.Stat(filepath.Join(tp.Path, ".cstudio", "index.db")); err != nil {
		t.Errorf("index database not under the project root: %v", err)
	}
}

func TestDuplicateWarnings(t *testing.T) {
	tp := testutil.NewTestProject(t).
		WithFile("items/a.yaml", "item_id: sword\n").
		WithFile("items/b.yaml", "item_id: sword\n").
		WithFile("items/c.yaml", "item_id: shield\n").
		Build()
	p := openTestProject(t, tp.Path, openOptions{})
	defer p.close()

	warnings := duplicateWarnings(p.session.Index())
	if len(warnings) != 1 {
		t.Fatalf("warnings = %+v, want one", warnings)
	}
	w := warnings[0]
	if w.Code != WarnDuplicateID || w.Ref != "items/sword" || !strings.Contains(w.Message, "items/b.yaml") {
		t.Errorf("warning = %+v", w)
	}
}

func TestParseEntityArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    model.EntityKey
		wantErr bool
	}{
		{"two args", []string{"rooms", "tavern"}, model.EntityKey{Type: model.Rooms, ID: "tavern"}, false},
		{"slash form", []string{"npcs/goblin"}, model.EntityKey{Type: model.NPCs, ID: "goblin"}, false},
		{"trims id", []string{"items", " sword "}, model.EntityKey{Type: model.Items, ID: "sword"}, false},
		{"unknown type", []string{"spells", "fireball"}, model.EntityKey{}, true},
		{"missing slash", []string{"tavern"}, model.EntityKey{}, true},
		{"empty id", []string{"rooms/"}, model.EntityKey{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEntityArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEntityArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseEntityArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseNewArgs(t *testing.T) {
	got, err := parseNewArgs([]string{"rooms"}, "The Dark Cellar")
	if err != nil || got != (model.EntityKey{Type: model.Rooms, ID: "the_dark_cellar"}) {
		t.Errorf("derived key = %v, %v", got, err)
	}
	got, err = parseNewArgs([]string{"rooms", "cellar"}, "The Dark Cellar")
	if err != nil || got.ID != "cellar" {
		t.Errorf("explicit id = %v, %v", got, err)
	}
	if _, err := parseNewArgs([]string{"rooms"}, ""); err == nil {
		t.Error("expected an error without an id or a name")
	}
	if _, err := parseNewArgs([]string{"rooms"}, "!!"); err == nil {
		t.Error("expected an error when no id can be derived")
	}
}

func TestParseTypes(t *testing.T) {
	got, err := parseTypes([]string{"rooms", " ", "npc_spawns"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != model.Rooms || got[1] != model.NPCSpawns {
		t.Errorf("parseTypes = %v", got)
	}
	if _, err := parseTypes([]string{"room"}); err == nil {
		t.Error("expected an error for an unknown type")
	}
}

func TestFilterOrphans(t *testing.T) {
	res := &query.AnalyticsResult{
		OrphanedEntityCount: 3,
		OrphanedEntities: []query.EntitySummary{
			{EntityType: model.Areas, EntityID: "town"},
			{EntityType: model.Items, EntityID: "sword"},
			{EntityType: model.Areas, EntityID: "forest"},
		},
	}
	isLeaf := func(t string) bool { return t == "areas" }

	out := filterOrphans(res, isLeaf, false)
	if len(out.OrphanedEntities) != 1 || out.OrphanedEntities[0].EntityID != "sword" {
		t.Errorf("orphans = %+v, want only items/sword", out.OrphanedEntities)
	}
	if out.HiddenOrphans != 2 || out.OrphanedEntityCount != 3 {
		t.Errorf("hidden = %d, count = %d", out.HiddenOrphans, out.OrphanedEntityCount)
	}
	if len(res.OrphanedEntities) != 3 {
		t.Error("filterOrphans modified its input")
	}

	all := filterOrphans(res, isLeaf, true)
	if len(all.OrphanedEntities) != 3 || all.HiddenOrphans != 0 {
		t.Errorf("--all result = %+v", all)
	}
}

func TestEnsureGitignore(t *testing.T) {
	dir := t.TempDir()

	status, err := ensureGitignore(dir)
	if err != nil || status != "created" {
		t.Fatalf("first call = %q, %v", status, err)
	}
	status, err = ensureGitignore(dir)
	if err != nil || status != "unchanged" {
		t.Fatalf("second call = %q, %v", status, err)
	}

	other := t.TempDir()
	if err := os.WriteFile(filepath.Join(other, ".gitignore"), []byte("*.log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	status, err = ensureGitignore(other)
	if err != nil || status != "updated" {
		t.Fatalf("existing file = %q, %v", status, err)
	}
	data, _ := os.ReadFile(filepath.Join(other, ".gitignore"))
	if !strings.HasPrefix(string(data), "*.log\n") || !strings.Contains(string(data), ".cstudio/") {
		t.Errorf(".gitignore = %q", data)
	}
}

func TestReadDocumentArg(t *testing.T) {
	tp := testutil.NewTestProject(t).WithSampleWorld().Build()
	p := openTestProject(t, tp.Path, openOptions{})
	defer p.close()

	t.Run("content relative", func(t *testing.T) {
		rel, raw, err := readDocumentArg(p.content, "rooms/tavern.yaml", nil)
		if err != nil {
			t.Fatal(err)
		}
		if rel != "rooms/tavern.yaml" || !strings.Contains(string(raw), "room_id: tavern") {
			t.Errorf("rel = %q, raw = %q", rel, raw)
		}
	})

	t.Run("absolute", func(t *testing.T) {
		abs := filepath.Join(tp.Path, "items", "sword.yaml")
		rel, _, err := readDocumentArg(p.content, abs, nil)
		if err != nil || rel != "items/sword.yaml" {
			t.Errorf("rel = %q, err = %v", rel, err)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		rel, raw, err := readDocumentArg(p.content, "-", strings.NewReader("item_id: x\n"))
		if err != nil || rel != "-" || string(raw) != "item_id: x\n" {
			t.Errorf("rel = %q, raw = %q, err = %v", rel, raw, err)
		}
	})

	t.Run("outside the project", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "x.yaml")
		if err := os.WriteFile(outside, []byte("x: 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := readDocumentArg(p.content, outside, nil); err == nil {
			t.Error("expected an error for a file outside the content root")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, _, err := readDocumentArg(p.content, "rooms/nowhere.yaml", nil); !os.IsNotExist(err) {
			t.Errorf("err = %v, want not-exist", err)
		}
	})
}

func TestFilterEntries(t *testing.T) {
	base := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	var entries []audit.Entry
	for i := 0; i < 4; i++ {
		entries = append(entries, audit.Entry{Timestamp: base.Add(time.Duration(i) * time.Hour), Operation: audit.OpReindex})
	}

	if got := filterEntries(entries, time.Time{}, 0); len(got) != 4 {
		t.Errorf("no filter kept %d entries", len(got))
	}
	got := filterEntries(entries, base.Add(time.Hour), 2)
	if len(got) != 2 || !got[0].Timestamp.Equal(base.Add(2*time.Hour)) {
		t.Errorf("filterEntries = %+v, want the newest two", got)
	}
	if got := filterEntries(nil, time.Time{}, 0); got == nil {
		t.Error("filterEntries(nil) should return an empty slice")
	}
}

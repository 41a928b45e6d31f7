package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

func newSession(t *testing.T, p *testutil.TestProject) *Session {
	t.Helper()
	store, err := content.New(p.Path, content.Options{})
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	s, err := New(Config{
		Content: store,
		Workers: 2,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func key(t model.ContentType, id string) model.EntityKey {
	return model.EntityKey{Type: t, ID: id}
}

func TestRebuildIndexReportsFailuresWithoutAborting(t *testing.T) {
	p := testutil.NewTestProject(t).
		WithSampleWorld().
		WithFile("rooms/broken.yaml", "room_id: broken\nexits: [north\n").
		Build()
	s := newSession(t, p)

	if s.Ready() {
		t.Fatal("session ready before first build")
	}
	report, err := s.RebuildIndex(context.Background())
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if !s.Ready() {
		t.Error("session not ready after build")
	}
	if report.Indexed != len(testutil.SampleWorld()) {
		t.Errorf("Indexed = %d, want %d", report.Indexed, len(testutil.SampleWorld()))
	}
	if len(report.Failed) != 1 || report.Failed[0].Path != "rooms/broken.yaml" {
		t.Errorf("Failed = %v", report.Failed)
	}
	if report.ID == "" || report.ID != s.BuildID() {
		t.Errorf("report ID %q, session build ID %q", report.ID, s.BuildID())
	}
	if !s.Index().Has(key(model.Abilities, "slash")) {
		t.Error("abilities/slash missing from index")
	}
}

func TestRebuildOne(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)
	if _, err := s.RebuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := s.Index()

	t.Run("changed", func(t *testing.T) {
		p.WriteFile("rooms/tavern.yaml", "room_id: tavern\nexits:\n  north: square\n")
		u, err := s.RebuildOne("rooms/tavern.yaml")
		if err != nil {
			t.Fatal(err)
		}
		if u.Kind != KindChanged || !reflect.DeepEqual(u.Paths, []string{"rooms/tavern.yaml"}) {
			t.Errorf("update = %+v", u)
		}
		fwd := s.Index().Forward(key(model.Rooms, "tavern"))
		if len(fwd) != 1 || fwd[0].TargetID != "square" {
			t.Errorf("Forward(tavern) = %v", fwd)
		}
		if len(before.Forward(key(model.Rooms, "tavern"))) != 3 {
			t.Error("earlier snapshot was mutated")
		}
	})

	t.Run("absolute path", func(t *testing.T) {
		if _, err := s.RebuildOne(filepath.Join(p.Path, "rooms", "tavern.yaml")); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("removed", func(t *testing.T) {
		// items/sword is referenced by an instance; the item_instances
		// document is unreferenced and can go without leaving edges.
		p.RemoveFile("item_instances/tavern.yaml")
		u, err := s.RebuildOne("item_instances/tavern.yaml")
		if err != nil {
			t.Fatal(err)
		}
		if u.Kind != KindRemoved {
			t.Errorf("Kind = %q", u.Kind)
		}
		k := key(model.ItemInstances, "sword_on_bar")
		idx := s.Index()
		if idx.Has(k) || len(idx.Forward(k)) != 0 || len(idx.Reverse(k)) != 0 {
			t.Error("removed entity still in index")
		}
		if got := idx.Reverse(key(model.Items, "sword")); len(got) != 0 {
			t.Errorf("Reverse(items/sword) = %v, want none", got)
		}
	})

	t.Run("parse failure", func(t *testing.T) {
		p.WriteFile("abilities/slash.yaml", "ability_id: [\n")
		if _, err := s.RebuildOne("abilities/slash.yaml"); err != nil {
			t.Fatal(err)
		}
		if s.Index().Has(key(model.Abilities, "slash")) {
			t.Error("unparseable document still contributes")
		}
		if _, ok := s.Index().FailedFor("abilities/slash.yaml"); !ok {
			t.Error("failure not recorded")
		}
	})

	t.Run("schema file", func(t *testing.T) {
		id := s.BuildID()
		p.WriteFile("rooms/_schema.yaml", testutil.RoomSchema())
		u, err := s.RebuildOne("rooms/_schema.yaml")
		if err != nil {
			t.Fatal(err)
		}
		if u.Kind != KindSchema || s.BuildID() != id {
			t.Errorf("schema change swapped the index: %+v", u)
		}
		sch, err := s.Schemas().Get(model.Rooms)
		if err != nil || sch == nil {
			t.Errorf("schema not reloaded: %v, %v", sch, err)
		}
	})

	t.Run("outside project", func(t *testing.T) {
		if _, err := s.RebuildOne("../elsewhere.yaml"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRebuildOneMatchesFullBuild(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	incremental := newSession(t, p)
	if _, err := incremental.RebuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.WriteFile("classes/warrior.yaml", "class_id: warrior\navailable_abilities: [slash]\n")
	p.WriteFile("abilities/parry.yaml", "ability_id: parry\n")
	for _, rel := range []string{"classes/warrior.yaml", "abilities/parry.yaml"} {
		if _, err := incremental.RebuildOne(rel); err != nil {
			t.Fatal(err)
		}
	}

	full := newSession(t, p)
	if _, err := full.RebuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	a, b := incremental.Index(), full.Index()
	if !reflect.DeepEqual(a.Keys(), b.Keys()) {
		t.Fatalf("keys differ")
	}
	for _, k := range b.Keys() {
		if !reflect.DeepEqual(a.Forward(k), b.Forward(k)) || !reflect.DeepEqual(a.Reverse(k), b.Reverse(k)) {
			t.Errorf("edges of %s differ", k)
		}
	}
	if a.Stats() != b.Stats() {
		t.Errorf("stats differ: %+v vs %+v", a.Stats(), b.Stats())
	}
}

func TestRebuildIndexLastWriterWins(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)

	scanned := make(chan struct{})
	release := make(chan struct{})
	s.afterScan = func(gen uint64) {
		if gen == 1 {
			close(scanned)
			<-release
		}
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.RebuildIndex(context.Background())
		firstErr <- err
	}()
	<-scanned

	second, err := s.RebuildIndex(context.Background())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	close(release)

	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first build error = %v, want ErrSuperseded", err)
	}
	if s.BuildID() != second.ID {
		t.Errorf("stale build was swapped in: %s != %s", s.BuildID(), second.ID)
	}
}

func TestRebuildIndexReplaysConcurrentRebuildOne(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)

	s.afterScan = func(uint64) {
		// The scan has read the old tavern; this edit lands mid-build.
		p.WriteFile("rooms/tavern.yaml", "room_id: tavern\nname: Renovated\n")
		if _, err := s.RebuildOne("rooms/tavern.yaml"); err != nil {
			t.Errorf("RebuildOne: %v", err)
		}
	}
	report, err := s.RebuildIndex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(report.Replayed, []string{"rooms/tavern.yaml"}) {
		t.Errorf("Replayed = %v", report.Replayed)
	}
	ent, _ := s.Index().Entity(key(model.Rooms, "tavern"))
	if ent.DisplayName != "Renovated" {
		t.Errorf("DisplayName = %q, want the mid-build edit", ent.DisplayName)
	}
	if got := s.Index().Forward(key(model.Rooms, "tavern")); len(got) != 0 {
		t.Errorf("Forward(tavern) = %v, want none", got)
	}
}

func TestRebuildIndexCancelled(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RebuildIndex(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.Ready() {
		t.Error("cancelled build marked the session ready")
	}
}

func TestSubscribe(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)

	updates, unsubscribe := s.Subscribe()
	if _, err := s.RebuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RebuildOne("rooms/square.yaml"); err != nil {
		t.Fatal(err)
	}

	first := <-updates
	if first.Kind != KindFull || first.BuildID == "" || first.Entities == 0 {
		t.Errorf("first update = %+v", first)
	}
	second := <-updates
	if second.Kind != KindChanged || second.BuildID != s.BuildID() {
		t.Errorf("second update = %+v", second)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-updates; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestRun(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	s := newSession(t, p)

	events := make(chan Event, 4)
	events <- Event{Op: Rescan}
	p.WriteFile("factions/bandits.yaml", "faction_id: bandits\n")
	events <- Event{Path: "factions/bandits.yaml", Op: Changed}
	close(events)

	if err := s.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.Ready() {
		t.Fatal("rescan did not complete")
	}
	if !s.Index().Has(key(model.Factions, "bandits")) {
		t.Error("changed event not applied")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	s := newSession(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx, make(chan Event)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v", err)
	}
}

func TestRefresh(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	seed := newSession(t, p)
	if _, err := seed.RebuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	known := map[string]time.Time{}
	for _, rel := range seed.Index().Documents() {
		mtime, err := seed.Content().Stat(rel)
		if err != nil {
			t.Fatal(err)
		}
		known[rel] = mtime
	}

	s, err := New(Config{Content: seed.Content(), Initial: seed.Index(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if !s.Ready() {
		t.Error("seeded session should be ready")
	}

	p.WriteFile("dialogues/goblin_greeting.yaml", "dialogue_id: goblin_greeting\n")
	p.RemoveFile("items/sword.yaml")
	later := time.Now().Add(time.Hour)
	p.WriteFile("areas/town.yaml", "area_id: town\nname: Big Town\n")
	known["areas/town.yaml"] = later // recorded as newer than disk: not stale

	refreshed, err := s.Refresh(context.Background(), known)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dialogues/goblin_greeting.yaml", "items/sword.yaml"}
	if !reflect.DeepEqual(refreshed, want) {
		t.Errorf("refreshed = %v, want %v", refreshed, want)
	}
	idx := s.Index()
	if !idx.Has(key(model.Dialogues, "goblin_greeting")) || idx.Has(key(model.Items, "sword")) {
		t.Error("refresh did not apply changes")
	}
}

func TestClosed(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	s := newSession(t, p)
	_ = s.Close()

	if _, err := s.RebuildIndex(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RebuildIndex error = %v", err)
	}
	if _, err := s.RebuildOne("rooms/a.yaml"); !errors.Is(err, ErrClosed) {
		t.Errorf("RebuildOne error = %v", err)
	}
	ch, _ := s.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscription on a closed session should be closed")
	}
}

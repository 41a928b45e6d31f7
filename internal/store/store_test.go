package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

func sampleIndex(t *testing.T) *index.Index {
	t.Helper()
	var results []extract.Result
	for path, body := range testutil.SampleWorld() {
		doc, err := content.ParseDocument(path, []byte(body))
		if err != nil {
			t.Fatalf("ParseDocument(%s): %v", path, err)
		}
		results = append(results, extract.Document(doc))
	}
	failed := []*model.ParseError{{Path: "rooms/broken.yaml", Line: 3, Message: "did not find expected key"}}
	return index.Build(results, failed)
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openStore(t)
	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Errorf("Load on empty store = %+v, want nil", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	mtime := time.Unix(1700000000, 123456789)
	idx := sampleIndex(t)
	tavernDoc, _ := idx.Document("rooms/tavern.yaml")
	tavernDoc.Mtime = mtime
	idx = idx.WithDocument(tavernDoc)
	broken, _ := idx.FailedFor("rooms/broken.yaml")
	brokenAt := *broken
	brokenAt.Mtime = mtime.Add(time.Second)
	idx = idx.WithFailure(&brokenAt)

	if err := s.Save(Snapshot{BuildID: "01TEST", Index: idx}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("Load returned nil snapshot")
	}
	if snap.BuildID != "01TEST" {
		t.Errorf("BuildID = %q", snap.BuildID)
	}
	if snap.SavedAt.IsZero() {
		t.Error("SavedAt not recorded")
	}

	if got, want := snap.Index.Stats(), idx.Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	if got, want := snap.Index.Keys(), idx.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
	if got, want := snap.Index.References(), idx.References(); !reflect.DeepEqual(got, want) {
		t.Errorf("References differ:\n got %v\nwant %v", got, want)
	}
	if got, want := snap.Index.Dangling(), idx.Dangling(); !reflect.DeepEqual(got, want) {
		t.Errorf("Dangling differ:\n got %v\nwant %v", got, want)
	}

	tavern, ok := snap.Index.Entity(model.EntityKey{Type: model.Rooms, ID: "tavern"})
	if !ok {
		t.Fatal("rooms/tavern missing after load")
	}
	if tavern.SourcePath != "rooms/tavern.yaml" {
		t.Errorf("SourcePath = %q", tavern.SourcePath)
	}
	if tavern.Fields["area_id"] != "town" {
		t.Errorf("Fields[area_id] = %v", tavern.Fields["area_id"])
	}

	if pe, ok := snap.Index.FailedFor("rooms/broken.yaml"); !ok || pe.Line != 3 {
		t.Errorf("FailedFor(rooms/broken.yaml) = %+v, %v", pe, ok)
	}
	if got := snap.Mtimes["rooms/tavern.yaml"]; !got.Equal(mtime) {
		t.Errorf("mtime = %v, want %v", got, mtime)
	}
	if got := snap.Mtimes["rooms/broken.yaml"]; !got.Equal(mtime.Add(time.Second)) {
		t.Errorf("failed doc mtime = %v", got)
	}
	if got := snap.Mtimes["rooms/square.yaml"]; !got.Equal(time.Unix(0, 0)) {
		t.Errorf("unknown mtime loaded as %v, want the epoch", got)
	}
	if res, _ := snap.Index.Document("rooms/tavern.yaml"); !res.Mtime.Equal(mtime) {
		t.Errorf("loaded result mtime = %v, want %v", res.Mtime, mtime)
	}
	if pe, _ := snap.Index.FailedFor("rooms/broken.yaml"); !pe.Mtime.Equal(mtime.Add(time.Second)) {
		t.Errorf("loaded failure mtime = %v", pe.Mtime)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openStore(t)
	if err := s.Save(Snapshot{BuildID: "first", Index: sampleIndex(t)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Snapshot{BuildID: "second", Index: index.Empty()}); err != nil {
		t.Fatal(err)
	}
	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if snap.BuildID != "second" {
		t.Errorf("BuildID = %q, want second", snap.BuildID)
	}
	if n := snap.Index.Stats().Entities; n != 0 {
		t.Errorf("entities after replace = %d, want 0", n)
	}
}

func TestClear(t *testing.T) {
	s := openStore(t)
	if err := s.Save(Snapshot{BuildID: "x", Index: sampleIndex(t)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Errorf("Load after Clear = %+v, want nil", snap)
	}
}

func TestSaveLocked(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	held, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer held.Release()

	err = s.Save(Snapshot{BuildID: "x", Index: index.Empty()})
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Save while locked = %v, want ErrLocked", err)
	}
}

func TestLockRelease(t *testing.T) {
	dir := t.TempDir()
	first, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	if _, err := acquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second acquireLock = %v, want ErrLocked", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	again, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("acquireLock after release: %v", err)
	}
	again.Release()
}

func TestOpenRecreatesOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Snapshot{BuildID: "old", Index: sampleIndex(t)}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE meta SET value = '999' WHERE key = 'schema_version'"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Errorf("snapshot survived a version change: %+v", snap)
	}
}

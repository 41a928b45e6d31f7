package watcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/session"
	"github.com/aidanlsb/cstudio/internal/testutil"
)

func newWatcher(t *testing.T, p *testutil.TestProject) *Watcher {
	t.Helper()
	store, err := content.New(p.Path, content.Options{})
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	w, err := New(Config{
		Content:  store,
		Debounce: 20 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-w.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
}

// next waits for an event matching want, skipping others.
func next(t *testing.T, w *Watcher, want session.Event) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatalf("event channel closed waiting for %+v", want)
			}
			if ev == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %+v", want)
		}
	}
}

func TestWatcherEmitsChangedAndRemoved(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	w := newWatcher(t, p)
	start(t, w)

	p.WriteFile("rooms/cellar.yaml", "room_id: cellar\n")
	next(t, w, session.Event{Path: "rooms/cellar.yaml", Op: session.Changed})

	p.RemoveFile("rooms/cellar.yaml")
	next(t, w, session.Event{Path: "rooms/cellar.yaml", Op: session.Removed})
}

func TestWatcherReportsSchemaChanges(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	w := newWatcher(t, p)
	start(t, w)

	p.WriteFile("rooms/_schema.yaml", testutil.RoomSchema())
	next(t, w, session.Event{Path: "rooms/_schema.yaml", Op: session.Changed})
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	p := testutil.NewTestProject(t).WithSampleWorld().Build()
	w := newWatcher(t, p)
	start(t, w)

	p.WriteFile("quests/main/q1.yaml", "quest_id: q1\n")
	next(t, w, session.Event{Path: "quests/main/q1.yaml", Op: session.Changed})
}

func TestReadyDebounces(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	w := newWatcher(t, p)

	now := time.Now()
	w.pending["rooms/a.yaml"] = pendingEvent{op: session.Changed, at: now}
	w.pending["rooms/b.yaml"] = pendingEvent{op: session.Removed, at: now.Add(-time.Second)}

	got := w.ready(now)
	if len(got) != 1 || got[0] != (session.Event{Path: "rooms/b.yaml", Op: session.Removed}) {
		t.Errorf("ready = %+v, want only rooms/b.yaml removed", got)
	}
	if _, ok := w.pending["rooms/a.yaml"]; !ok {
		t.Error("quiet period not respected for rooms/a.yaml")
	}
}

func TestReadyRescanSwallowsPending(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	w := newWatcher(t, p)

	past := time.Now().Add(-time.Second)
	w.pending["rooms/a.yaml"] = pendingEvent{op: session.Changed, at: past}
	w.pending[""] = pendingEvent{op: session.Rescan, at: past}

	got := w.ready(time.Now())
	if len(got) != 1 || got[0].Op != session.Rescan {
		t.Errorf("ready = %+v, want a single rescan", got)
	}
	if len(w.pending) != 0 {
		t.Errorf("pending after rescan = %v", w.pending)
	}
}

func TestRelevant(t *testing.T) {
	p := testutil.NewTestProject(t).Build()
	w := newWatcher(t, p)

	tests := []struct {
		rel  string
		want bool
	}{
		{"rooms/tavern.yaml", true},
		{"rooms/_schema.yaml", true},
		{"rooms/notes.txt", false},
		{"docs/readme.yaml", false},
		{"studio.yaml", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := w.relevant(tt.rel); got != tt.want {
				t.Errorf("relevant(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

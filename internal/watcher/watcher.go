// Package watcher turns filesystem notifications under a project's content
// root into session change events.
//
// It is used by `cstudio watch` and `cstudio serve`.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/paths"
	"github.com/aidanlsb/cstudio/internal/session"
)

// DefaultDebounce is how long a path must stay quiet before its event is sent.
const DefaultDebounce = 150 * time.Millisecond

// Watcher monitors a content root and emits debounced change events.
type Watcher struct {
	content  *content.Store
	debounce time.Duration
	logger   *slog.Logger
	out      chan session.Event

	fsWatcher *fsnotify.Watcher
	started   chan struct{}

	mu      sync.Mutex
	pending map[string]pendingEvent
	dirs    map[string]bool
}

type pendingEvent struct {
	op session.Op
	at time.Time
}

// Config holds configuration options for the Watcher.
type Config struct {
	Content  *content.Store
	Debounce time.Duration // Default: DefaultDebounce
	Logger   *slog.Logger

	// Buffer sizes the event channel. Default: 64.
	Buffer int
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Watcher{
		content:  cfg.Content,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "watcher")),
		out:      make(chan session.Event, buffer),
		started:  make(chan struct{}),
		pending:  make(map[string]pendingEvent),
		dirs:     make(map[string]bool),
	}, nil
}

// Events returns the channel events are delivered on. It is closed when
// Start returns.
func (w *Watcher) Events() <-chan session.Event { return w.out }

// Started is closed once the initial directory watches are in place.
func (w *Watcher) Started() <-chan struct{} { return w.started }

// Start watches the content root until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.out)

	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	if err := w.addWatchRecursive(w.content.Root()); err != nil {
		return fmt.Errorf("failed to watch content root: %w", err)
	}
	w.logger.Info("watching content", slog.String("root", w.content.Root()))
	close(w.started)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer func() {
		cancel()
		<-done
	}()
	go func() {
		defer close(done)
		w.processDebounced(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watcher overflowed, requesting rescan")
				w.send(ctx, session.Event{Op: session.Rescan})
				continue
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// handleEvent classifies one filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	rel, err := w.content.Rel(path)
	if err != nil || paths.IsHidden(rel) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// Files may land before the watch is added, so schedule
			// whatever is already there.
			if err := w.addWatchRecursive(path); err != nil {
				w.logger.Warn("failed to watch directory", slog.String("path", rel), slog.Any("error", err))
			}
			w.scheduleTree(path)
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(path) {
		w.logger.Debug("directory removed, requesting rescan", slog.String("path", rel))
		w.schedule("", session.Rescan)
		return
	}

	if !w.relevant(rel) {
		return
	}
	w.logger.Debug("event", slog.String("op", event.Op.String()), slog.String("path", rel))

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.schedule(rel, session.Changed)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.schedule(rel, session.Removed)
	}
}

// relevant reports whether rel is a content document or a schema file.
func (w *Watcher) relevant(rel string) bool {
	if _, ok := w.content.TypeOf(rel); ok {
		return true
	}
	_, ok := w.content.SchemaTypeOf(rel)
	return ok
}

// schedule records the latest op for rel; the debounce clock restarts.
func (w *Watcher) schedule(rel string, op session.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = pendingEvent{op: op, at: time.Now()}
}

func (w *Watcher) scheduleTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, err := w.content.Rel(path); err == nil && w.relevant(rel) {
			w.schedule(rel, session.Changed)
		}
		return nil
	})
}

// processDebounced flushes pending events after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range w.ready(time.Now()) {
				if !w.send(ctx, ev) {
					return
				}
			}
		}
	}
}

// ready removes and returns the events that have been quiet long enough.
// A pending rescan swallows every other pending path.
func (w *Watcher) ready(now time.Time) []session.Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []session.Event
	if p, ok := w.pending[""]; ok && p.op == session.Rescan {
		if now.Sub(p.at) < w.debounce {
			return nil
		}
		w.pending = make(map[string]pendingEvent)
		return []session.Event{{Op: session.Rescan}}
	}
	for rel, p := range w.pending {
		if now.Sub(p.at) >= w.debounce {
			out = append(out, session.Event{Path: rel, Op: p.op})
			delete(w.pending, rel)
		}
	}
	return out
}

func (w *Watcher) send(ctx context.Context, ev session.Event) bool {
	select {
	case w.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// addWatchRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// forgetDir drops path from the watched set and reports whether it was a
// watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[path] {
		return false
	}
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, path+string(filepath.Separator)) {
			delete(w.dirs, dir)
		}
	}
	return true
}

// shouldIgnoreDir returns true if the directory should not be watched.
func (w *Watcher) shouldIgnoreDir(path string) bool {
	if path == w.content.Root() {
		return false
	}
	rel, err := w.content.Rel(path)
	if err != nil {
		return true
	}
	if paths.IsHidden(rel) {
		return true
	}
	base := filepath.Base(path)
	return base == content.StateDir || base == "node_modules"
}

// Package session owns the live reference index of one project. It is the
// only writer: full builds and single-document rebuilds go through it, and
// each mutation atomically swaps in a new immutable index.Index, so readers
// calling Index always see a complete snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/schema"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrSuperseded is returned by a full build whose result was discarded
	// because a newer build was requested while it ran.
	ErrSuperseded = errors.New("index build superseded by a newer build")
)

// Config configures a Session.
type Config struct {
	// Content is the document store to index. Required.
	Content *content.Store

	// Schemas caches per-type schemas. Default: a set over Content's root.
	Schemas *schema.Set

	// Workers bounds parallel document reads during a full build.
	// Default: GOMAXPROCS.
	Workers int

	// Initial seeds the session, e.g. from a snapshot. Default: empty index.
	Initial *index.Index

	// InitialBuildID identifies Initial.
	InitialBuildID string

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// BuildReport describes a completed full build.
type BuildReport struct {
	ID         string              `json:"build_id"`
	Indexed    int                 `json:"indexed"`
	Entities   int                 `json:"entities"`
	References int                 `json:"references"`
	Failed     []*model.ParseError `json:"failed"`
	Replayed   []string            `json:"replayed,omitempty"`
	Duration   time.Duration       `json:"duration_ns"`
}

// Session holds the current index and serialises every mutation of it.
type Session struct {
	content *content.Store
	schemas *schema.Set
	workers int
	metrics *observe.Metrics
	logger  *slog.Logger

	current atomic.Pointer[index.Index]
	buildID atomic.Pointer[string]
	ready   atomic.Bool
	closed  atomic.Bool

	// mu serialises swaps. The fields below are guarded by it.
	mu          sync.Mutex
	generation  uint64
	cancelBuild context.CancelFunc
	dirty       map[string]bool

	subsMu sync.Mutex
	subs   map[chan Update]struct{}

	// afterScan, when set, runs between a full build's scan and its swap.
	afterScan func(generation uint64)
}

// New creates a session. It does not build; call RebuildIndex (or seed
// Config.Initial) before serving queries.
func New(cfg Config) (*Session, error) {
	if cfg.Content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	s := &Session{
		content: cfg.Content,
		schemas: cfg.Schemas,
		workers: cfg.Workers,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		subs:    make(map[chan Update]struct{}),
	}
	if s.schemas == nil {
		s.schemas = schema.NewSet(cfg.Content.Root(), cfg.Content.SchemaFile())
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		m, err := observe.NewMetrics(noop.NewMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		s.metrics = m
	}

	initial := cfg.Initial
	id := cfg.InitialBuildID
	if initial == nil {
		initial = index.Empty()
	} else {
		s.ready.Store(true)
		if id == "" {
			id = newBuildID()
		}
	}
	s.current.Store(initial)
	s.buildID.Store(&id)
	return s, nil
}

// Index returns the current snapshot.
func (s *Session) Index() *index.Index { return s.current.Load() }

// BuildID identifies the current snapshot. It changes on every swap.
func (s *Session) BuildID() string { return *s.buildID.Load() }

// Ready reports whether a complete index has been installed.
func (s *Session) Ready() bool { return s.ready.Load() }

// Content returns the session's document store.
func (s *Session) Content() *content.Store { return s.content }

// Schemas returns the session's schema cache.
func (s *Session) Schemas() *schema.Set { return s.schemas }

// Metrics returns the session's metric instruments.
func (s *Session) Metrics() *observe.Metrics { return s.metrics }

// Close cancels any in-flight build and closes subscriber channels.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	if s.cancelBuild != nil {
		s.cancelBuild()
	}
	s.mu.Unlock()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	return nil
}

func (s *Session) swap(idx *index.Index) string {
	id := newBuildID()
	s.current.Store(idx)
	s.buildID.Store(&id)
	return id
}

func newBuildID() string {
	return ulid.Make().String()
}

func sortedPaths(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
)

// slot is the outcome of reading one document during a full build.
type slot struct {
	result extract.Result
	failed *model.ParseError
	gone   bool
}

// RebuildIndex scans every document and swaps in a freshly built index.
//
// Builds are last-writer-wins: starting a build cancels any build already in
// flight, and a build that finishes after a newer one started discards its
// result and returns ErrSuperseded. Documents rebuilt with RebuildOne while
// the build ran are re-read on top of its result before the swap. Parse
// failures do not fail the build; they are listed in the report.
func (s *Session) RebuildIndex(ctx context.Context) (*BuildReport, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancelBuild != nil {
		s.cancelBuild()
	}
	bctx, cancel := context.WithCancel(ctx)
	s.cancelBuild = cancel
	s.dirty = make(map[string]bool)
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	s.schemas.InvalidateAll()

	idx, failed, err := s.scan(bctx)
	if s.afterScan != nil {
		s.afterScan(gen)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.metrics.RecordBuild(ctx, time.Since(start), "superseded", 0, 0)
		s.logger.Debug("index build superseded", slog.Uint64("generation", gen))
		return nil, ErrSuperseded
	}
	s.cancelBuild = nil
	dirty := s.dirty
	s.dirty = nil
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordBuild(ctx, time.Since(start), "failed", 0, 0)
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	replayed := sortedPaths(dirty)
	for _, p := range replayed {
		idx, _ = s.apply(idx, p)
	}
	id := s.swap(idx)
	s.ready.Store(true)
	s.mu.Unlock()

	stats := idx.Stats()
	report := &BuildReport{
		ID:         id,
		Indexed:    stats.Documents,
		Entities:   stats.Entities,
		References: stats.References,
		Failed:     idx.Failed(),
		Replayed:   replayed,
		Duration:   time.Since(start),
	}
	s.metrics.RecordBuild(ctx, report.Duration, "swapped", report.Indexed, len(failed))
	s.logger.Info("index built",
		slog.String("build_id", id),
		slog.Int("documents", report.Indexed),
		slog.Int("failed", len(report.Failed)),
		slog.Int("entities", report.Entities),
		slog.Duration("duration", report.Duration),
	)
	s.publish(Update{
		BuildID:    id,
		Kind:       KindFull,
		Entities:   stats.Entities,
		References: stats.References,
		Failed:     stats.Failed,
	})
	return report, nil
}

// scan reads every document with bounded parallelism. Results are placed by
// listing position so the build does not depend on completion order.
func (s *Session) scan(ctx context.Context) (*index.Index, []*model.ParseError, error) {
	paths, err := s.content.ListEntities()
	if err != nil {
		return nil, nil, err
	}

	slots := make([]slot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = s.read(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var results []extract.Result
	var failed []*model.ParseError
	for _, sl := range slots {
		switch {
		case sl.gone:
		case sl.failed != nil:
			failed = append(failed, sl.failed)
		default:
			results = append(results, sl.result)
		}
	}
	return index.Build(results, failed), failed, nil
}

// read loads and extracts one document.
func (s *Session) read(rel string) slot {
	doc, err := s.content.ReadDocument(rel)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrNotContent) {
			return slot{gone: true}
		}
		var pe *model.ParseError
		if errors.As(err, &pe) {
			return slot{failed: pe}
		}
		return slot{failed: &model.ParseError{Path: rel, Message: err.Error(), Err: err}}
	}
	return slot{result: extract.Document(doc)}
}

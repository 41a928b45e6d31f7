package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/paths"
)

// RebuildOne re-reads one document and replaces only its contribution to
// the index. A path that no longer exists, or no longer lies in a type
// directory, has its contribution removed. A schema file path invalidates
// that type's cached schema and leaves the index untouched.
//
// path may be absolute or content-relative.
func (s *Session) RebuildOne(path string) (Update, error) {
	if s.closed.Load() {
		return Update{}, ErrClosed
	}
	rel, err := s.relPath(path)
	if err != nil {
		return Update{}, err
	}

	s.mu.Lock()
	next, kind := s.apply(s.current.Load(), rel)
	if s.dirty != nil {
		s.dirty[rel] = true
	}
	var id string
	if kind == KindSchema {
		id = s.BuildID()
	} else {
		id = s.swap(next)
	}
	s.mu.Unlock()

	if kind != KindSchema {
		s.metrics.RecordRebuildOne(context.Background(), string(kind))
	}
	s.logger.Debug("document rebuilt",
		slog.String("path", rel),
		slog.String("kind", string(kind)),
		slog.String("build_id", id),
	)

	stats := next.Stats()
	u := Update{
		BuildID:    id,
		Kind:       kind,
		Paths:      []string{rel},
		Entities:   stats.Entities,
		References: stats.References,
		Failed:     stats.Failed,
	}
	s.publish(u)
	return u, nil
}

// apply returns idx with rel's contribution brought up to date with disk.
// Callers hold s.mu.
func (s *Session) apply(idx *index.Index, rel string) (*index.Index, UpdateKind) {
	if t, ok := s.content.SchemaTypeOf(rel); ok {
		s.schemas.Invalidate(t)
		return idx, KindSchema
	}
	if _, ok := s.content.TypeOf(rel); !ok {
		return idx.WithoutDocument(rel), KindRemoved
	}

	doc, err := s.content.ReadDocument(rel)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return idx.WithoutDocument(rel), KindRemoved
		}
		var pe *model.ParseError
		if !errors.As(err, &pe) {
			pe = &model.ParseError{Path: rel, Message: err.Error(), Err: err}
		}
		s.logger.Debug("document failed to parse", slog.String("path", rel), slog.Any("error", pe))
		return idx.WithFailure(pe), KindChanged
	}
	return idx.WithDocument(extract.Document(doc)), KindChanged
}

func (s *Session) relPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(path) {
		return s.content.Rel(path)
	}
	rel := paths.NormalizeRel(path)
	if rel == ".." || paths.TopDir(rel) == ".." {
		return "", fmt.Errorf("%w: %s", paths.ErrPathOutsideProject, path)
	}
	return rel, nil
}

// Refresh brings a seeded index up to date with disk. known maps every
// document the seed was built from to its modification time; documents that
// are new, newer than known, or gone are rebuilt one at a time. It returns
// the refreshed paths.
func (s *Session) Refresh(ctx context.Context, known map[string]time.Time) ([]string, error) {
	current, err := s.content.ListEntities()
	if err != nil {
		return nil, err
	}

	stale := make(map[string]bool)
	onDisk := make(map[string]bool, len(current))
	for _, rel := range current {
		onDisk[rel] = true
		seen, ok := known[rel]
		if !ok {
			stale[rel] = true
			continue
		}
		mtime, err := s.content.Stat(rel)
		if err != nil || mtime.After(seen) {
			stale[rel] = true
		}
	}
	for rel := range known {
		if !onDisk[rel] {
			stale[rel] = true
		}
	}

	refreshed := sortedPaths(stale)
	for _, rel := range refreshed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.RebuildOne(rel); err != nil {
			return nil, err
		}
	}
	if len(refreshed) > 0 {
		s.logger.Info("index refreshed", slog.Int("documents", len(refreshed)))
	}
	return refreshed, nil
}

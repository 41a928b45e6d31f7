package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aidanlsb/cstudio/internal/audit"
	"github.com/aidanlsb/cstudio/internal/config"
	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/session"
	"github.com/aidanlsb/cstudio/internal/store"
)

// openOptions controls how a project's session is seeded.
type openOptions struct {
	// full ignores the saved snapshot and rebuilds from disk.
	full bool

	// metrics overrides the session's (no-op) instruments.
	metrics *observe.Metrics
}

// project is an opened content project: its config, its documents, its
// snapshot store and a live session over them.
type project struct {
	path    string
	cfg     *config.ProjectConfig
	content *content.Store
	store   *store.Store
	session *session.Session
	audit   *audit.Logger
	logger  *slog.Logger

	// report is set when a full build ran while opening.
	report *session.BuildReport

	// refreshed lists the documents re-read because the snapshot was
	// behind the disk.
	refreshed []string

	// fromSnapshot is true when the session was seeded from the store.
	fromSnapshot bool
}

// openProject opens the resolved project and brings its index up to date,
// either by refreshing the saved snapshot or with a full build.
func openProject(ctx context.Context, opts openOptions) (*project, error) {
	p, err := newProject(getProjectPath(), getProjectConfig(), slog.Default())
	if err != nil {
		return nil, err
	}
	if err := p.open(ctx, opts); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func newProject(path string, cfg *config.ProjectConfig, logger *slog.Logger) (*project, error) {
	cs, err := content.New(cfg.ContentRoot(path), content.Options{
		SchemaFile: cfg.SchemaFile,
		Extensions: cfg.Extensions,
		Ignore:     cfg.Ignore,
	})
	if err != nil {
		return nil, err
	}
	stateDir := filepath.Join(path, content.StateDir)
	st, err := store.Open(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	return &project{
		path:    path,
		cfg:     cfg,
		content: cs,
		store:   st,
		audit:   audit.New(stateDir, cfg.IsAuditLogEnabled()),
		logger:  logger,
	}, nil
}

func (p *project) open(ctx context.Context, opts openOptions) error {
	var snap *store.Snapshot
	if !opts.full {
		var err error
		snap, err = p.store.Load()
		if err != nil {
			p.logger.Warn("ignoring unreadable index snapshot", slog.Any("error", err))
			snap = nil
		}
	}

	sessCfg := session.Config{
		Content: p.content,
		Metrics: opts.metrics,
		Logger:  p.logger,
	}
	if snap != nil {
		sessCfg.Initial = snap.Index
		sessCfg.InitialBuildID = snap.BuildID
	}
	sess, err := session.New(sessCfg)
	if err != nil {
		return err
	}
	p.session = sess

	if snap != nil {
		p.fromSnapshot = true
		p.refreshed, err = sess.Refresh(ctx, snap.Mtimes)
		return err
	}
	p.report, err = sess.RebuildIndex(ctx)
	return err
}

// changed reports whether the index differs from the saved snapshot.
func (p *project) changed() bool {
	return p.report != nil || len(p.refreshed) > 0
}

// engine returns a query engine over the current index.
func (p *project) engine() *query.Engine {
	return query.New(p.session.Index(), p.queryOptions())
}

func (p *project) queryOptions() query.Options {
	return query.Options{
		Schemas:       p.session.Schemas(),
		TopReferenced: p.cfg.TopReferenced,
		Metrics:       p.session.Metrics(),
	}
}

// save writes the current index to the snapshot store. Each document keeps
// the modification time it had when the session read it, so a file edited
// since then is still stale on the next open.
func (p *project) save() error {
	return p.store.Save(store.Snapshot{
		BuildID: p.session.BuildID(),
		Index:   p.session.Index(),
	})
}

// saveIfChanged saves the snapshot when opening changed the index. A
// failure is returned as a warning: the answer the command computed is
// still correct.
func (p *project) saveIfChanged() []Warning {
	if !p.changed() {
		return nil
	}
	return p.saveWarnings()
}

func (p *project) saveWarnings() []Warning {
	if err := p.save(); err != nil {
		msg := fmt.Sprintf("index snapshot not saved: %v", err)
		if errors.Is(err, store.ErrLocked) {
			msg = "index snapshot not saved: another cstudio process is writing it"
		}
		p.logger.Warn(msg)
		return []Warning{{Code: WarnIndexSaveFailed, Message: msg}}
	}
	return nil
}

// duplicateWarnings reports every id defined by more than one document.
// The entity from the smallest path is the one the index uses.
func duplicateWarnings(idx *index.Index) []Warning {
	var out []Warning
	for _, key := range idx.Keys() {
		dups := idx.Duplicates(key)
		if len(dups) == 0 {
			continue
		}
		canonical, _ := idx.Entity(key)
		for _, d := range dups {
			out = append(out, Warning{
				Code:    WarnDuplicateID,
				Message: fmt.Sprintf("%s is also defined in %s; using %s", key, d.SourcePath, canonical.SourcePath),
				Ref:     key.String(),
			})
		}
	}
	return out
}

// logAudit records an operation. The change already happened, so a failed
// write is only logged.
func (p *project) logAudit(err error) {
	if err != nil {
		p.logger.Warn("audit log not written", slog.Any("error", err))
	}
}

func (p *project) close() {
	if p.session != nil {
		_ = p.session.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

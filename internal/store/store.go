// Package store persists the last index build in the project's state
// directory, so CLI commands can start from it and re-read only the
// documents whose modification time moved.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/index"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/sqlutil"
)

// ErrLocked is returned by Save when another process is writing the snapshot.
var ErrLocked = errors.New("index snapshot is locked by another process")

const (
	// FileName is the snapshot database inside the state directory.
	FileName = "index.db"
	lockName = "index.lock"

	// SchemaVersion is bumped whenever the table layout changes. A database
	// with another version is dropped and recreated on Open.
	// v1: documents, entities, refs, meta
	SchemaVersion = 1
)

// Store is an open snapshot database.
type Store struct {
	db   *sql.DB
	dir  string
	path string
}

// Snapshot is one saved index build.
type Snapshot struct {
	BuildID string
	SavedAt time.Time
	Index   *index.Index

	// Mtimes is filled by Load with the modification time every document
	// (indexed or failed) had when it was read. Save takes the times from
	// the index itself.
	Mtimes map[string]time.Time
}

// Open opens (creating if needed) the snapshot database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	version, err := readVersion(db)
	if err != nil || (version != 0 && version != SchemaVersion) {
		db.Close()
		if err := removeDatabaseFiles(path); err != nil {
			return nil, err
		}
		if db, err = openDB(path); err != nil {
			return nil, err
		}
	}

	s := &Store{db: db, dir: dir, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	// A single connection keeps pragmas and transactions on one handle.
	db.SetMaxOpenConns(1)
	return db, nil
}

// readVersion returns 0 for a database without a meta table.
func readVersion(db *sql.DB) (int, error) {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='meta'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var raw string
	err = db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *Store) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			mtime INTEGER NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			error_line INTEGER,
			error TEXT
		);

		CREATE TABLE IF NOT EXISTS entities (
			path TEXT NOT NULL,
			ord INTEGER NOT NULL,
			type TEXT NOT NULL,
			id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			line INTEGER NOT NULL DEFAULT 0,
			fields TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (path, ord)
		);

		CREATE TABLE IF NOT EXISTS refs (
			path TEXT NOT NULL,
			ord INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			field_path TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			PRIMARY KEY (path, ord)
		);

		CREATE INDEX IF NOT EXISTS idx_entities_key ON entities(type, id);
		CREATE INDEX IF NOT EXISTS idx_refs_target ON refs(target_type, target_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)",
		strconv.Itoa(SchemaVersion),
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot version: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with snap in a single transaction. It
// returns ErrLocked if another process is saving at the same time.
func (s *Store) Save(snap Snapshot) error {
	if snap.Index == nil {
		return fmt.Errorf("snapshot has no index")
	}
	lock, err := acquireLock(s.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"documents", "entities", "refs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	docStmt, err := tx.Prepare(`INSERT INTO documents (path, type, mtime, failed, error_line, error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare documents insert: %w", err)
	}
	defer docStmt.Close()
	entStmt, err := tx.Prepare(`INSERT INTO entities (path, ord, type, id, display_name, line, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entities insert: %w", err)
	}
	defer entStmt.Close()
	refStmt, err := tx.Prepare(`INSERT INTO refs (path, ord, source_type, source_id, field_path, target_type, target_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare refs insert: %w", err)
	}
	defer refStmt.Close()

	idx := snap.Index
	for _, path := range idx.Documents() {
		res, _ := idx.Document(path)
		if _, err := docStmt.Exec(path, typeOf(path), mtimeOf(res.Mtime), 0, nil, nil); err != nil {
			return fmt.Errorf("failed to store document %s: %w", path, err)
		}
		for i, e := range res.Entities {
			fields, err := json.Marshal(e.Fields)
			if err != nil {
				return fmt.Errorf("failed to encode fields of %s: %w", e.GetID(), err)
			}
			if _, err := entStmt.Exec(path, i, string(e.Type), e.ID, e.DisplayName, e.Line, string(fields)); err != nil {
				return fmt.Errorf("failed to store entity %s: %w", e.GetID(), err)
			}
		}
		for i, r := range res.References {
			_, err := refStmt.Exec(path, i, string(r.SourceType), r.SourceID, r.FieldPath, string(r.TargetType), r.TargetID)
			if err != nil {
				return fmt.Errorf("failed to store reference from %s: %w", r.GetID(), err)
			}
		}
	}
	for _, pe := range idx.Failed() {
		if _, err := docStmt.Exec(pe.Path, typeOf(pe.Path), mtimeOf(pe.Mtime), 1, pe.Line, pe.Message); err != nil {
			return fmt.Errorf("failed to store failure for %s: %w", pe.Path, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	meta := map[string]string{
		"build_id": snap.BuildID,
		"saved_at": strconv.FormatInt(savedAt.UnixNano(), 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to store %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. It returns (nil, nil) when nothing has
// been saved yet.
func (s *Store) Load() (*Snapshot, error) {
	meta, err := s.meta()
	if err != nil {
		return nil, err
	}
	if meta["build_id"] == "" {
		return nil, nil
	}

	snap := &Snapshot{
		BuildID: meta["build_id"],
		Mtimes:  make(map[string]time.Time),
	}
	if ns, err := strconv.ParseInt(meta["saved_at"], 10, 64); err == nil {
		snap.SavedAt = time.Unix(0, ns)
	}

	results := make(map[string]*extract.Result)
	var order []string
	var failed []*model.ParseError

	rows, err := s.db.Query("SELECT path, mtime, failed, error_line, error FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	for rows.Next() {
		var (
			path      string
			mtime     int64
			isFailed  bool
			errorLine sql.NullInt64
			message   sql.NullString
		)
		if err := rows.Scan(&path, &mtime, &isFailed, &errorLine, &message); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		read := time.Unix(0, mtime)
		snap.Mtimes[path] = read
		if isFailed {
			failed = append(failed, &model.ParseError{
				Path:    path,
				Line:    int(errorLine.Int64),
				Message: message.String,
				Mtime:   read,
			})
			continue
		}
		results[path] = &extract.Result{Path: path, Mtime: read}
		order = append(order, path)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if err := s.loadEntities(results); err != nil {
		return nil, err
	}
	if err := s.loadReferences(results); err != nil {
		return nil, err
	}

	built := make([]extract.Result, 0, len(order))
	for _, path := range order {
		built = append(built, *results[path])
	}
	snap.Index = index.Build(built, failed)
	return snap, nil
}

func (s *Store) loadEntities(results map[string]*extract.Result) error {
	entities, err := sqlutil.Query(s.db, "entity",
		"SELECT path, type, id, display_name, line, fields FROM entities ORDER BY path, ord",
		func(rows *sql.Rows) (model.Entity, error) {
			var (
				e      model.Entity
				typ    string
				fields string
			)
			if err := rows.Scan(&e.SourcePath, &typ, &e.ID, &e.DisplayName, &e.Line, &fields); err != nil {
				return e, err
			}
			e.Type = model.ContentType(typ)
			if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
				return e, fmt.Errorf("fields of %s: %w", e.GetID(), err)
			}
			return e, nil
		})
	if err != nil {
		return err
	}
	for _, e := range entities {
		if res, ok := results[e.SourcePath]; ok {
			res.Entities = append(res.Entities, e)
		}
	}
	return nil
}

func (s *Store) loadReferences(results map[string]*extract.Result) error {
	refs, err := sqlutil.Query(s.db, "reference",
		`SELECT path, source_type, source_id, field_path, target_type, target_id
		FROM refs ORDER BY path, ord`,
		func(rows *sql.Rows) (model.Reference, error) {
			var (
				r              model.Reference
				source, target string
			)
			if err := rows.Scan(&r.SourcePath, &source, &r.SourceID, &r.FieldPath, &target, &r.TargetID); err != nil {
				return r, err
			}
			r.SourceType = model.ContentType(source)
			r.TargetType = model.ContentType(target)
			return r, nil
		})
	if err != nil {
		return err
	}
	for _, r := range refs {
		if res, ok := results[r.SourcePath]; ok {
			res.References = append(res.References, r)
		}
	}
	return nil
}

func (s *Store) meta() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Clear drops the stored snapshot but keeps the database.
func (s *Store) Clear() error {
	lock, err := acquireLock(s.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	for _, stmt := range []string{
		"DELETE FROM documents",
		"DELETE FROM entities",
		"DELETE FROM refs",
		"DELETE FROM meta WHERE key IN ('build_id', 'saved_at')",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
	}
	return nil
}

func typeOf(path string) string {
	t, _, _ := strings.Cut(path, "/")
	return t
}

// mtimeOf encodes t for the documents table. An unknown time is stored as 0,
// which any file on disk is newer than.
func mtimeOf(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func removeDatabaseFiles(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

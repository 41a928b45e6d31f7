// Package audit provides an append-only log of the changes cstudio makes to
// a project's content.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aidanlsb/cstudio/internal/model"
)

// FileName is the log file inside the project's state directory.
const FileName = "audit.log"

// Operations recorded in the log.
const (
	OpCreate  = "create"
	OpDelete  = "delete"
	OpReindex = "reindex"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp  time.Time              `json:"ts"`
	Operation  string                 `json:"op"`
	EntityType model.ContentType      `json:"entity_type,omitempty"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Logger appends entries to one project's audit log.
type Logger struct {
	path    string
	enabled bool
	mu      sync.Mutex
}

// New creates a logger writing to stateDir/audit.log. If enabled is false,
// the logger is a no-op.
func New(stateDir string, enabled bool) *Logger {
	if !enabled {
		return &Logger{enabled: false}
	}
	return &Logger{
		path:    filepath.Join(stateDir, FileName),
		enabled: true,
	}
}

// Log writes an entry to the audit log.
func (l *Logger) Log(entry Entry) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// LogCreate logs a new entity document.
func (l *Logger) LogCreate(key model.EntityKey, path string) error {
	return l.Log(Entry{
		Operation:  OpCreate,
		EntityType: key.Type,
		EntityID:   key.ID,
		Path:       path,
	})
}

// LogDelete logs a deleted entity document and the references it broke.
func (l *Logger) LogDelete(key model.EntityKey, path string, broken []model.Reference) error {
	var extra map[string]interface{}
	if len(broken) > 0 {
		sources := make([]string, 0, len(broken))
		for _, r := range broken {
			sources = append(sources, r.Source().String()+"."+r.FieldPath)
		}
		extra = map[string]interface{}{"broken": sources}
	}
	return l.Log(Entry{
		Operation:  OpDelete,
		EntityType: key.Type,
		EntityID:   key.ID,
		Path:       path,
		Extra:      extra,
	})
}

// LogReindex logs a saved index build.
func (l *Logger) LogReindex(mode string, entities, failed int) error {
	return l.Log(Entry{
		Operation: OpReindex,
		Extra: map[string]interface{}{
			"mode":     mode,
			"entities": entities,
			"failed":   failed,
		},
	})
}

// Read reads all entries from the audit log. Malformed lines are skipped.
func (l *Logger) Read() ([]Entry, error) {
	if !l.enabled {
		return nil, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// ReadSince reads entries logged at or after since.
func (l *Logger) ReadSince(since time.Time) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}

	var filtered []Entry
	for _, entry := range all {
		if !entry.Timestamp.Before(since) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// ReadForEntity reads entries about one entity.
func (l *Logger) ReadForEntity(key model.EntityKey) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}

	var filtered []Entry
	for _, entry := range all {
		if entry.EntityType == key.Type && entry.EntityID == key.ID {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// Package lastquery persists the results of the most recent search so that
// follow-up commands can refer to them by number.
package lastquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aidanlsb/cstudio/internal/atomicfile"
	"github.com/aidanlsb/cstudio/internal/model"
)

// FileName is the results file inside the project's state directory.
const FileName = "last-query.json"

// LastQuery stores the results of the most recent query.
type LastQuery struct {
	Command   string        `json:"command"`
	Query     string        `json:"query"`
	Timestamp time.Time     `json:"timestamp"`
	Results   []ResultEntry `json:"results"`
}

// ResultEntry is one numbered result.
type ResultEntry struct {
	Num        int               `json:"num"` // 1-indexed, as displayed
	EntityType model.ContentType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Path       string            `json:"path,omitempty"`
}

// Key returns the entity the entry points at.
func (r ResultEntry) Key() model.EntityKey {
	return model.EntityKey{Type: r.EntityType, ID: r.EntityID}
}

var (
	ErrNoLastQuery      = errors.New("no last query available")
	ErrInvalidNumber    = errors.New("invalid result number")
	ErrNumberOutOfRange = errors.New("result number out of range")
)

// Path returns the results file for a state directory.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Write saves the results, numbering them from 1 in order.
func Write(stateDir string, lq *LastQuery) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	for i := range lq.Results {
		lq.Results[i].Num = i + 1
	}
	if lq.Timestamp.IsZero() {
		lq.Timestamp = time.Now().UTC()
	}

	data, err := json.MarshalIndent(lq, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal last query: %w", err)
	}
	if err := atomicfile.WriteFile(Path(stateDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write last query: %w", err)
	}
	return nil
}

// Read loads the last results. It returns ErrNoLastQuery when none were saved.
func Read(stateDir string) (*LastQuery, error) {
	data, err := os.ReadFile(Path(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLastQuery
		}
		return nil, fmt.Errorf("failed to read last query: %w", err)
	}

	var lq LastQuery
	if err := json.Unmarshal(data, &lq); err != nil {
		return nil, fmt.Errorf("failed to parse last query: %w", err)
	}
	return &lq, nil
}

// GetByNumbers returns the entries with the given 1-indexed numbers.
func (lq *LastQuery) GetByNumbers(nums []int) ([]ResultEntry, error) {
	results := make([]ResultEntry, 0, len(nums))
	for _, num := range nums {
		if num < 1 || num > len(lq.Results) {
			if len(lq.Results) == 0 {
				return nil, fmt.Errorf("%w: %d (the last %s had no results)", ErrNumberOutOfRange, num, lq.Command)
			}
			return nil, fmt.Errorf("%w: %d (valid range: 1-%d)", ErrNumberOutOfRange, num, len(lq.Results))
		}
		results = append(results, lq.Results[num-1])
	}
	return results, nil
}

// Package check turns query findings into per-document reports: it merges
// and orders the findings for one document, and runs every document of a
// project through the same path.
package check

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/schema"
)

// Merge combines finding lists for one document into a single ordered list:
// line ascending with unknown lines last, syntax first on a tie. Exact
// duplicates are dropped and every finding is stamped with path.
func Merge(path string, lists ...[]model.ValidationError) []model.ValidationError {
	out := []model.ValidationError{}
	seen := make(map[model.ValidationError]bool)
	for _, list := range lists {
		for _, ve := range list {
			if path != "" {
				ve.Path = path
			}
			if seen[ve] {
				continue
			}
			seen[ve] = true
			out = append(out, ve)
		}
	}
	model.SortValidationErrors(out)
	return out
}

// Document validates one document's text through the query engine.
func Document(eng *query.Engine, text []byte, t model.ContentType, path string) ([]model.ValidationError, error) {
	findings, err := eng.Validate(text, t, path)
	if err != nil {
		return nil, err
	}
	return Merge(path, findings), nil
}

// DocumentReport holds the findings for one document.
type DocumentReport struct {
	Path     string                  `json:"path"`
	Type     model.ContentType       `json:"type,omitempty"`
	Errors   int                     `json:"error_count"`
	Warnings int                     `json:"warning_count"`
	Findings []model.ValidationError `json:"findings"`
}

func newReport(path string, t model.ContentType, findings []model.ValidationError) DocumentReport {
	r := DocumentReport{Path: path, Type: t, Findings: findings}
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityError:
			r.Errors++
		case model.SeverityWarning:
			r.Warnings++
		}
	}
	return r
}

// Result is a project-wide check.
type Result struct {
	Checked int `json:"checked"`

	// Documents lists only documents with findings, in path order. Schema
	// files that fail to load are reported here too.
	Documents []DocumentReport `json:"documents"`

	Errors   int `json:"error_count"`
	Warnings int `json:"warning_count"`
}

// OK reports whether the check passed. With strict, warnings fail it too.
func (r *Result) OK(strict bool) bool {
	if strict {
		return r.Errors == 0 && r.Warnings == 0
	}
	return r.Errors == 0
}

func (r *Result) add(rep DocumentReport) {
	if len(rep.Findings) == 0 {
		return
	}
	r.Documents = append(r.Documents, rep)
	r.Errors += rep.Errors
	r.Warnings += rep.Warnings
}

// Project validates every schema file and every document on disk against
// eng's index. Documents are read fresh, so the report reflects disk even
// if the index is behind.
func Project(store *content.Store, eng *query.Engine, schemas *schema.Set) (*Result, error) {
	res := &Result{Documents: []DocumentReport{}}

	if schemas != nil {
		for _, t := range model.AllTypes() {
			if _, err := schemas.Get(t); err != nil {
				rel := string(t) + "/" + schemas.FileName()
				res.add(newReport(rel, t, []model.ValidationError{{
					Kind:     model.KindValidation,
					Severity: model.SeverityError,
					Path:     rel,
					Message:  fmt.Sprintf("schema file could not be loaded, no field rules applied: %v", err),
				}}))
			}
		}
	}

	paths, err := store.ListEntities()
	if err != nil {
		return nil, err
	}
	for _, rel := range paths {
		t, _ := store.TypeOf(rel)
		raw, err := os.ReadFile(store.Abs(rel))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			res.Checked++
			res.add(newReport(rel, t, Merge(rel, []model.ValidationError{{
				Kind:     model.KindValidation,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("failed to read document: %v", err),
			}})))
			continue
		}
		res.Checked++

		findings, err := Document(eng, raw, t, rel)
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s: %w", rel, err)
		}
		res.add(newReport(rel, t, findings))
	}

	// Schema reports were added first; keep the whole list in path order.
	sortReports(res.Documents)
	return res, nil
}

func sortReports(reports []DocumentReport) {
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
}

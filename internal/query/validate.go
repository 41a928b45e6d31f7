package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/aidanlsb/cstudio/internal/content"
	"github.com/aidanlsb/cstudio/internal/extract"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/paths"
	"github.com/aidanlsb/cstudio/internal/schema"
)

// Validate checks one document's text as if it were saved at path (which
// may be empty for unsaved text) with type t. It reports, in display order:
// a syntax error alone if the text does not parse; otherwise schema errors
// (required fields, declared types, enum values, a missing primary key),
// reference errors for edges whose target is not in the index, and a
// warning when the document redefines an id another document owns.
//
// Lines are best-effort: the first line naming the field, searched from the
// start of the entity the finding belongs to. An unknown type yields no
// findings.
func (e *Engine) Validate(text []byte, t model.ContentType, path string) ([]model.ValidationError, error) {
	defer e.observe("validate", time.Now())

	if strings.TrimSpace(string(t)) == "" {
		return nil, ErrEmptyType
	}
	errs := []model.ValidationError{}
	pk, ok := extract.PrimaryKey(t)
	if !ok {
		return errs, nil
	}
	path = paths.NormalizeRel(path)
	docPath := path
	if docPath == "" {
		docPath = string(t) + "/"
	}

	doc, err := content.ParseDocument(docPath, text)
	if err != nil {
		if pe, ok := err.(*model.ParseError); ok {
			ve := pe.AsValidationError()
			ve.Path = path
			return append(errs, ve), nil
		}
		return nil, err
	}
	if doc.Data == nil {
		return errs, nil
	}

	v := validator{path: path, lines: strings.Split(string(text), "\n")}

	var sch *schema.Schema
	if e.opts.Schemas != nil {
		// A malformed schema file is reported by check; here it means no rules.
		sch, _ = e.opts.Schemas.Get(t)
	}

	recs, ok := extract.Records(t, doc.Data, doc.Node)
	if !ok {
		v.add(model.ValidationError{
			Kind:     model.KindValidation,
			Severity: model.SeverityError,
			Line:     1,
			Message:  fmt.Sprintf("document is not a %s", shapeName(t)),
		})
	}
	res := extract.Data(t, docPath, doc.Data, doc.Node)
	entityStart := make(map[string]int, len(res.Entities))
	for _, ent := range res.Entities {
		if _, seen := entityStart[ent.ID]; !seen {
			entityStart[ent.ID] = ent.Line
		}
	}

	for _, rec := range recs {
		start := rec.Line
		required := make(map[string]bool)
		for _, se := range sch.Validate(rec.Fields) {
			if se.Code == schema.CodeRequired {
				required[se.Field] = true
			}
			v.add(model.ValidationError{
				Kind:     model.KindSchema,
				Severity: model.SeverityError,
				Field:    se.Field,
				Line:     v.locate(se.Field, start),
				Message:  se.Message,
			})
		}
		if _, ok := extract.ScalarID(rec.Fields[pk]); !ok && !required[pk] {
			v.add(model.ValidationError{
				Kind:     model.KindSchema,
				Severity: model.SeverityError,
				Field:    pk,
				Line:     v.locate(pk, start),
				Message:  fmt.Sprintf("missing primary key field '%s'", pk),
			})
		}
	}

	idsByType := map[model.ContentType][]string{}
	for _, ref := range res.References {
		if e.idx.Has(ref.Target()) {
			continue
		}
		ids, ok := idsByType[ref.TargetType]
		if !ok {
			for _, ent := range e.idx.Entities(ref.TargetType) {
				ids = append(ids, ent.ID)
			}
			idsByType[ref.TargetType] = ids
		}
		ve := model.ValidationError{
			Kind:     model.KindReference,
			Severity: model.SeverityError,
			Field:    ref.FieldPath,
			Line:     v.locate(ref.FieldPath, entityStart[ref.SourceID]),
			Message:  fmt.Sprintf("%s '%s' does not exist", ref.TargetType, ref.TargetID),
		}
		if s := suggest(ref.TargetID, ids, e.opts.SuggestThreshold); s != "" {
			ve.Suggestion = fmt.Sprintf("did you mean '%s'?", s)
		}
		v.add(ve)
	}

	if path != "" {
		for _, ent := range res.Entities {
			other, ok := e.idx.Entity(ent.Key())
			if !ok || other.SourcePath == path {
				continue
			}
			v.add(model.ValidationError{
				Kind:     model.KindValidation,
				Severity: model.SeverityWarning,
				Field:    pk,
				Line:     v.locate(pk, ent.Line),
				Message:  fmt.Sprintf("duplicate %s id '%s', also defined in %s", t, ent.ID, other.SourcePath),
			})
		}
	}

	errs = append(errs, v.errs...)
	model.SortValidationErrors(errs)
	return errs, nil
}

func shapeName(t model.ContentType) string {
	if extract.IsMultiEntity(t) {
		return "mapping or list of mappings"
	}
	return "mapping"
}

type validator struct {
	path  string
	lines []string
	errs  []model.ValidationError
}

func (v *validator) add(ve model.ValidationError) {
	ve.Path = v.path
	v.errs = append(v.errs, ve)
}

// locate returns the 1-based line of the first "field:" at or after from,
// trying a top-level key first and then any indented or list-item key. For
// a dotted path the last segment is searched. 0 means not found.
func (v *validator) locate(field string, from int) int {
	if field == "" {
		return 0
	}
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if from < 1 {
		from = 1
	}
	// Top-level keys first, then keys under indentation or a list dash.
	for _, indent := range []string{"", " \t-"} {
		for i := from - 1; i < len(v.lines); i++ {
			if isKeyLine(v.lines[i], field, indent) {
				return i + 1
			}
		}
	}
	return 0
}

// isKeyLine reports whether line, once the leading indent characters are
// dropped, opens the mapping key field, optionally quoted.
func isKeyLine(line, field, indent string) bool {
	rest := trimQuote(strings.TrimLeft(line, indent))
	rest, ok := strings.CutPrefix(rest, field)
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(trimQuote(rest), " \t"), ":")
}

func trimQuote(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		return s[1:]
	}
	return s
}

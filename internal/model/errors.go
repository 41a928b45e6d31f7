package model

import (
	"fmt"
	"sort"
	"time"
)

// ErrorKind classifies a validation finding.
type ErrorKind string

const (
	KindSyntax     ErrorKind = "syntax"
	KindSchema     ErrorKind = "schema"
	KindReference  ErrorKind = "reference"
	KindValidation ErrorKind = "validation"
)

// Rank orders kinds for display: syntax first, generic validation last.
func (k ErrorKind) Rank() int {
	switch k {
	case KindSyntax:
		return 0
	case KindSchema:
		return 1
	case KindReference:
		return 2
	default:
		return 3
	}
}

// Severity is how loudly a finding should be shown. Findings never block
// editing.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationError is a transient finding about one document.
type ValidationError struct {
	Kind     ErrorKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Path     string    `json:"path,omitempty"`

	// Field is the dotted field the finding is about, if any.
	Field string `json:"field,omitempty"`

	// Line is 1-indexed; 0 means the line could not be located.
	Line int `json:"line,omitempty"`

	Message string `json:"message"`

	// Suggestion is an optional fix hint, e.g. a close existing id.
	Suggestion string `json:"suggestion,omitempty"`
}

func (e ValidationError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Message)
}

// ParseError reports a document that could not be read as structured
// content. It is fatal to that document only.
type ParseError struct {
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	// Mtime is the file's modification time when it was read. Zero when the
	// file could not be stat'ed.
	Mtime time.Time `json:"-"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AsValidationError converts a parse failure to a syntax finding.
func (e *ParseError) AsValidationError() ValidationError {
	return ValidationError{
		Kind:     KindSyntax,
		Severity: SeverityError,
		Path:     e.Path,
		Line:     e.Line,
		Message:  e.Message,
	}
}

// SortValidationErrors orders findings so the most actionable comes first:
// by line with unknown lines (0) last, then syntax before schema before
// reference before validation, then by field and message. The sort is
// stable.
func SortValidationErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if a.Line != b.Line {
			if a.Line == 0 {
				return false
			}
			if b.Line == 0 {
				return true
			}
			return a.Line < b.Line
		}
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Message < b.Message
	})
}

package ui

import (
	"fmt"

	"github.com/aidanlsb/cstudio/internal/model"
)

// Status symbols. Outcomes are never coloured, only marked.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
)

func status(symbol, msg string) string { return symbol + " " + msg }

func Success(msg string) string { return status(SymbolSuccess, msg) }
func Error(msg string) string   { return status(SymbolError, msg) }
func Warning(msg string) string { return status(SymbolWarning, msg) }
func Info(msg string) string    { return status(SymbolInfo, msg) }

// Check marks a completed step.
func Check(msg string) string { return Success(msg) }

func Successf(format string, args ...interface{}) string { return Success(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{}) string   { return Error(fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...interface{}) string { return Warning(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{}) string    { return Info(fmt.Sprintf(format, args...)) }

func Header(msg string) string   { return Bold.Render(msg) }
func FilePath(path string) string { return Accent.Render(path) }
func Hint(msg string) string      { return Muted.Render(msg) }

// EntityKey renders "type/id" with the id emphasised.
func EntityKey(t model.ContentType, id string) string {
	return Muted.Render(string(t)+"/") + AccentBold.Render(id)
}

// Location renders path:line, or just the path when the line is unknown.
func Location(path string, line int) string {
	if line <= 0 {
		return FilePath(path)
	}
	return FilePath(path) + Muted.Render(fmt.Sprintf(":%d", line))
}

// Finding renders one validation finding with its severity symbol.
func Finding(e model.ValidationError) string {
	msg := fmt.Sprintf("%s %s", Muted.Render("["+string(e.Kind)+"]"), e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s %s", Bold.Render(e.Field), msg)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s %s", Muted.Render(fmt.Sprintf("L%d", e.Line)), msg)
	}
	if e.Suggestion != "" {
		msg += " " + Hint("("+e.Suggestion+")")
	}
	switch e.Severity {
	case model.SeverityError:
		return Error(msg)
	case model.SeverityWarning:
		return Warning(msg)
	default:
		return Info(msg)
	}
}

// Count renders "(1 match)" or "(3 matches)".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("(%d %s)", n, singular)
	}
	return fmt.Sprintf("(%d %s)", n, plural)
}

// ErrorWarningCounts renders "(3 errors, 2 warnings)", leaving out a zero
// count unless both are zero.
func ErrorWarningCounts(errors, warnings int) string {
	errs := Count(errors, "error", "errors")
	warns := Count(warnings, "warning", "warnings")
	switch {
	case errors > 0 && warnings > 0:
		return errs[:len(errs)-1] + ", " + warns[1:]
	case errors > 0:
		return errs
	default:
		return warns
	}
}

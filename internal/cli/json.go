package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// jsonOutput is set by --json.
var jsonOutput bool

// stdout receives results and envelopes; logs go to stderr.
var stdout io.Writer = os.Stdout

// errReported is returned once an error envelope has been written. The
// process still exits non-zero but Execute prints nothing more.
var errReported = errors.New("error reported")

// Response is the envelope every --json command prints.
type Response struct {
	OK       bool        `json:"ok"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorInfo  `json:"error,omitempty"`
	Warnings []Warning   `json:"warnings,omitempty"`
	Meta     *Meta       `json:"meta,omitempty"`
}

// ErrorInfo describes a failed command. Code is one of the Err* constants.
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Warning is a problem that did not stop the command.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

func writeEnvelope(resp Response, indent bool) {
	enc := json.NewEncoder(stdout)
	if indent {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(resp)
}

func outputSuccess(data interface{}, meta *Meta) {
	writeEnvelope(Response{OK: true, Data: data, Meta: meta}, true)
}

func outputSuccessWithWarnings(data interface{}, warnings []Warning, meta *Meta) {
	writeEnvelope(Response{OK: true, Data: data, Warnings: warnings, Meta: meta}, true)
}

// outputLine writes a compact single-line envelope, for streams.
func outputLine(data interface{}) {
	writeEnvelope(Response{OK: true, Data: data}, false)
}

func outputError(code, message string, details interface{}, suggestion string) {
	writeEnvelope(Response{Error: &ErrorInfo{
		Code:       code,
		Message:    message,
		Details:    details,
		Suggestion: suggestion,
	}}, true)
}

// handleError reports a failed command. With --json it writes the error
// envelope and returns errReported; otherwise it returns err, with the
// suggestion appended, for Execute to print.
func handleError(code string, err error, suggestion string) error {
	return handleErrorWithDetails(code, err.Error(), suggestion, nil)
}

func handleErrorMsg(code, message, suggestion string) error {
	return handleErrorWithDetails(code, message, suggestion, nil)
}

// handleErrorWithDetails is handleError with structured details, which only
// the JSON envelope carries.
func handleErrorWithDetails(code, message, suggestion string, details interface{}) error {
	if jsonOutput {
		outputError(code, message, details, suggestion)
		return errReported
	}
	if suggestion != "" {
		return fmt.Errorf("%s\n\n%s", message, suggestion)
	}
	return errors.New(message)
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format, args...)
}

func printLine(args ...interface{}) {
	fmt.Fprintln(stdout, args...)
}

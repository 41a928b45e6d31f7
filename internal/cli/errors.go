// Package cli implements the command-line interface.
package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Project errors
	ErrProjectNotFound     = "PROJECT_NOT_FOUND"
	ErrProjectNotSpecified = "PROJECT_NOT_SPECIFIED"
	ErrConfigInvalid       = "CONFIG_INVALID"

	// Entity errors
	ErrTypeNotFound   = "TYPE_NOT_FOUND"
	ErrEntityNotFound = "ENTITY_NOT_FOUND"
	ErrEntityExists   = "ENTITY_EXISTS"
	ErrDeleteBlocked  = "DELETE_BLOCKED"

	// File errors
	ErrFileNotFound       = "FILE_NOT_FOUND"
	ErrFileReadError      = "FILE_READ_ERROR"
	ErrFileWriteError     = "FILE_WRITE_ERROR"
	ErrFileOutsideProject = "FILE_OUTSIDE_PROJECT"

	// Index errors
	ErrIndexLocked   = "INDEX_LOCKED"
	ErrIndexError    = "INDEX_ERROR"
	ErrDatabaseError = "DATABASE_ERROR"

	// Validation errors
	ErrValidationFailed = "VALIDATION_FAILED"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnIndexSaveFailed = "INDEX_SAVE_FAILED"
	WarnParseFailed     = "PARSE_FAILED"
	WarnHasReferrers    = "HAS_REFERRERS"
	WarnDuplicateID     = "DUPLICATE_ID"
)

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InvariantViolation indicates a caller broke a precondition of the lineage graph
	InvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// OutOfOrderCommit indicates a commit was integrated before one it follows
	OutOfOrderCommit ErrorCode = "OUT_OF_ORDER_COMMIT"
	// BackendUnavailable indicates a repository backend cannot be read
	BackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// InvalidRevision indicates a revision string could not be parsed or resolved
	InvalidRevision ErrorCode = "INVALID_REVISION"
	// InvalidInput indicates malformed adapter or script input
	InvalidInput ErrorCode = "INVALID_INPUT"
	// StorageFailure indicates the commit journal could not be read or written
	StorageFailure ErrorCode = "STORAGE_FAILURE"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// Timeout indicates a backend operation timed out
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// LineageError represents an error with code, message, and suggestions
type LineageError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewLineageError creates a new LineageError
func NewLineageError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *LineageError {
	return &LineageError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Newf creates a LineageError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *LineageError {
	return NewLineageError(code, fmt.Sprintf(format, args...), nil, GetSuggestedFixes(code))
}

// Wrap creates a LineageError around cause
func Wrap(code ErrorCode, cause error, message string) *LineageError {
	return NewLineageError(code, message, cause, GetSuggestedFixes(code))
}

// Error implements the error interface
func (e *LineageError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *LineageError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *LineageError) WithDetails(details interface{}) *LineageError {
	e.Details = details
	return e
}

// IsCode reports whether err (or anything it wraps) is a LineageError with code.
// OutOfOrderCommit also matches InvariantViolation, since it is one.
func IsCode(err error, code ErrorCode) bool {
	var le *LineageError
	if !stderrors.As(err, &le) {
		return false
	}
	if le.Code == code {
		return true
	}
	return code == InvariantViolation && le.Code == OutOfOrderCommit
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	OutOfOrderCommit: {
		{
			Type:        RunCommand,
			Command:     "lineage import --rebuild",
			Safe:        true,
			Description: "Rebuild the journal from the repository in commit order",
		},
	},
	BackendUnavailable: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify the repository path points at a readable repository",
		},
	},
	StorageFailure: {
		{
			Type:        RunCommand,
			Command:     "lineage import --rebuild",
			Safe:        true,
			Description: "Recreate the commit journal",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

package proxy

import (
	"errors"
	"fmt"
)

// ErrForbiddenPath is returned for paths not on the allow-list. This is a
// security boundary: unknown paths fail closed.
var ErrForbiddenPath = errors.New("path not allowed")

// Machine-readable error codes surfaced to clients.
const (
	CodeMissingPath        = "MISSING_PATH"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeInvalidContentType = "INVALID_CONTENT_TYPE"
	CodeForbiddenPath      = "FORBIDDEN_PATH"
	CodeInvalidEndpoint    = "INVALID_ENDPOINT"
	CodeConfigError        = "CONFIG_ERROR"
	CodeUpstreamError      = "TMDB_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// ValidationError marks a malformed or incomplete client request.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Code, e.Message)
}

// NewValidationError creates a ValidationError with a machine-readable code.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

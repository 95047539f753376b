// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Code carries the machine-readable error kind (e.g. "version_conflict");
// CurrentVersion is set only on version conflicts so callers can re-fetch
// before deciding whether to retry.
type APIError struct {
	Detail         string `json:"detail"`
	Code           string `json:"code,omitempty"`
	CurrentVersion int    `json:"current_version,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Conflict builds the envelope for an optimistic-concurrency loss.
func Conflict(msg string, currentVersion int) *APIError {
	return &APIError{Detail: msg, Code: "version_conflict", CurrentVersion: currentVersion}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Validation error", Fields: fields}
}

package errors

import (
	"errors"
)

// ErrorResponse is the decoded form of a HuulkitError as seen by clients.
// The CLI and tests decode error bodies into it.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As so callers importing this package do not
// also need the standard library errors package.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

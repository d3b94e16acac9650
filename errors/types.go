package errors

import (
	"net/http"
)

// NewError creates a new HuulkitError with full control over its fields.
// Prefer the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *HuulkitError {
	return &HuulkitError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error, e.g. blank input text or
// an unknown language.
//
//	err := NewValidationError("req_123", "Text cannot be empty", map[string]interface{}{
//	    "field": "text",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *HuulkitError {
	return &HuulkitError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewConfigError is returned when an operation needs an API key that has not
// been saved yet.
func NewConfigError(requestID, message string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      ConfigError,
		Message:   message,
		Code:      http.StatusPreconditionFailed,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Save the API key with PUT /v1/keys or `huulkit keys set`",
		},
	}
}

// NewProviderError wraps a failure of the hosted language model.
func NewProviderError(requestID, message string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewWeatherError wraps a failure of the weather API.
func NewWeatherError(requestID, message string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      WeatherError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError creates a rate limit error carrying the retry hint in seconds.
func NewRateLimitError(requestID string, retryAfter int) *HuulkitError {
	return &HuulkitError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewUnavailableError is used when the server refuses work it cannot take on
// right now (full queue, open circuit breaker).
func NewUnavailableError(requestID, message string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      UnavailableError,
		Message:   message,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewTimeoutError is used when the request context deadline expired.
func NewTimeoutError(requestID string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      TimeoutError,
		Message:   "Request timeout",
		Code:      http.StatusGatewayTimeout,
		RequestID: requestID,
		err:       err,
	}
}

// NewNotFoundError creates a not found error for an unknown resource.
func NewNotFoundError(requestID, message string) *HuulkitError {
	return &HuulkitError{
		Type:      NotFoundError,
		Message:   message,
		Code:      http.StatusNotFound,
		RequestID: requestID,
	}
}

// NewInternalError hides the cause from the client; it is still available
// through Unwrap for logging.
func NewInternalError(requestID string, err error) *HuulkitError {
	return &HuulkitError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

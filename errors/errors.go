// Package errors provides the error handling system for the Huulkit gateway.
// It includes structured error types, JSON response formatting, request ID tracking,
// and integrated logging with Uber's zap logger.
//
// Domain packages (refine, weather, keystore) return plain Go errors. The HTTP
// layer converts them into a HuulkitError carrying a category and a status code:
//
//	errors.WriteError(w, errors.NewValidationError(requestID, "Text cannot be empty", nil))
//
// The message of a HuulkitError is the human readable text shown to the user.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the category of a failure. Clients only need to
// distinguish a handful of cases, everything else is InternalError.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"
	// ConfigError represents a missing or unusable API key
	ConfigError ErrorType = "config_error"
	// ProviderError represents errors from the hosted language model
	ProviderError ErrorType = "provider_error"
	// WeatherError represents errors from the weather API
	WeatherError ErrorType = "weather_error"
	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"
	// UnavailableError is returned when the request queue is full or a breaker is open
	UnavailableError ErrorType = "unavailable"
	// TimeoutError is returned when a request exceeded its deadline
	TimeoutError ErrorType = "timeout"
	// NotFoundError represents resource not found errors
	NotFoundError ErrorType = "not_found"
	// InternalError represents unexpected internal errors
	InternalError ErrorType = "internal_error"
)

// HuulkitError is the error type rendered to API clients. It keeps the
// underlying cause for logging but never serializes it.
type HuulkitError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *HuulkitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *HuulkitError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &HuulkitError{Type: ConfigError})
// works regardless of message or request.
func (e *HuulkitError) Is(target error) bool {
	t, ok := target.(*HuulkitError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *HuulkitError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Error("failed to encode error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// ErrorWithType is a drop-in replacement for http.Error that lets the caller
// pick the error category. The request ID is taken from the response headers.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &HuulkitError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

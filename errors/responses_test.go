package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *HuulkitError
		expectedCode   int
		expectedType   ErrorType
		expectedFields []string
	}{
		{
			name: "config error",
			err: &HuulkitError{
				Type:      ConfigError,
				Message:   "Gemini API key not configured",
				Code:      http.StatusPreconditionFailed,
				RequestID: "test-id",
			},
			expectedCode:   http.StatusPreconditionFailed,
			expectedType:   ConfigError,
			expectedFields: []string{"type", "message", "request_id"},
		},
		{
			name: "error with details",
			err: &HuulkitError{
				Type:      ValidationError,
				Message:   "validation failed",
				Code:      http.StatusBadRequest,
				RequestID: "test-id",
				Details: map[string]interface{}{
					"field": "text",
					"error": "required",
				},
			},
			expectedCode:   http.StatusBadRequest,
			expectedType:   ValidationError,
			expectedFields: []string{"type", "message", "request_id", "details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("WriteError() status = %v, want %v", rr.Code, tt.expectedCode)
			}

			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteError() content-type = %v, want application/json", ct)
			}

			var response map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response body: %v", err)
			}

			if errorType, ok := response["type"].(string); !ok || ErrorType(errorType) != tt.expectedType {
				t.Errorf("WriteError() error type = %v, want %v", errorType, tt.expectedType)
			}

			for _, field := range tt.expectedFields {
				if _, exists := response[field]; !exists {
					t.Errorf("WriteError() missing expected field: %s", field)
				}
			}
		})
	}
}

func TestErrorWithType(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Request-ID", "rid")
	ErrorWithType(rr, "Method not allowed", ValidationError, http.StatusMethodNotAllowed)

	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "rid" || rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("unexpected response %+v (code %d)", resp, rr.Code)
	}
}

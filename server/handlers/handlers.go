// Package handlers provides the HTTP handlers of the Huulkit gateway.
// Handlers decode and validate the request, call the domain service and
// map its typed failures onto errors.HuulkitError responses.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/server/circuitbreaker"
	"github.com/huulkit/huulkit/server/middleware"
	"github.com/huulkit/huulkit/server/provider"
	"github.com/huulkit/huulkit/weather"
	"go.uber.org/zap"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		middleware.LoggerFrom(r.Context(), logger).Error("Failed to encode response", zap.Error(err))
	}
}

// toHuulkitError maps a domain failure onto the error rendered to clients.
func toHuulkitError(ctx context.Context, requestID string, err error) *errors.HuulkitError {
	var herr *errors.HuulkitError
	if errors.As(err, &herr) {
		return herr
	}

	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.NewTimeoutError(requestID, err)
	}

	var werr *weather.Error
	if errors.As(err, &werr) {
		switch {
		case errors.Is(err, circuitbreaker.ErrOpen):
			return errors.NewUnavailableError(requestID, "Weather service is temporarily unavailable", err)
		case werr.Kind == weather.KindNotConfigured:
			return errors.NewConfigError(requestID, werr.Message, err)
		case werr.Kind == weather.KindUnknownCity:
			return errors.NewNotFoundError(requestID, werr.Message)
		default:
			return errors.NewWeatherError(requestID, werr.Message, err)
		}
	}

	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, provider.ErrNoHealthyProvider) {
		return errors.NewUnavailableError(requestID, "Language model is temporarily unavailable", err)
	}

	var rerr *refine.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case refine.KindInvalid:
			return errors.NewValidationError(requestID, rerr.Message, nil)
		case refine.KindNotConfigured:
			return errors.NewConfigError(requestID, rerr.Message, err)
		default:
			return errors.NewProviderError(requestID, rerr.Message, err)
		}
	}

	return errors.NewInternalError(requestID, fmt.Errorf("unexpected failure: %w", err))
}

// fail logs err and writes its mapped response.
func fail(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestID := middleware.GetRequestID(r.Context())
	herr := toHuulkitError(r.Context(), requestID, err)
	errors.LogError(middleware.LoggerFrom(r.Context(), logger), herr, requestID)
	errors.WriteError(w, herr)
}

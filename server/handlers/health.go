package handlers

import (
	"net/http"

	"github.com/huulkit/huulkit/server/provider"
	"go.uber.org/zap"
)

// HealthReporter exposes the provider health table.
type HealthReporter interface {
	HealthStatuses() map[string]provider.HealthStatus
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	providers HealthReporter
	logger    *zap.Logger
}

func NewHealthHandler(providers HealthReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{providers: providers, logger: logger}
}

// HealthResponse reports "ok" when every configured provider is healthy and
// "degraded" otherwise.
type HealthResponse struct {
	Status    string                           `json:"status"`
	Providers map[string]provider.HealthStatus `json:"providers"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.providers.HealthStatuses()
	status := "ok"
	for _, s := range statuses {
		if s.Configured && !s.Healthy {
			status = "degraded"
			break
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, h.logger, code, HealthResponse{Status: status, Providers: statuses})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/huulkit/huulkit/weather"
	"go.uber.org/zap"
)

// WeatherSource is the part of weather.Client the handler uses.
type WeatherSource interface {
	Info(ctx context.Context, city weather.City) (weather.Info, error)
	ForAll(ctx context.Context) ([]weather.Info, error)
}

var _ WeatherSource = (*weather.Client)(nil)

// WeatherHandler serves the weather routes.
type WeatherHandler struct {
	source WeatherSource
	logger *zap.Logger
}

func NewWeatherHandler(source WeatherSource, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{source: source, logger: logger}
}

// WeatherResponse is the body returned by GET /v1/weather.
type WeatherResponse struct {
	Cities []weather.Info `json:"cities"`
}

// All handles GET /v1/weather.
func (h *WeatherHandler) All(w http.ResponseWriter, r *http.Request) {
	infos, err := h.source.ForAll(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, WeatherResponse{Cities: infos})
}

// City handles GET /v1/weather/{city}.
func (h *WeatherHandler) City(w http.ResponseWriter, r *http.Request) {
	city, err := weather.ParseCity(chi.URLParam(r, "city"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}

	info, err := h.source.Info(r.Context(), city)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, info)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/server/middleware"
	"github.com/huulkit/huulkit/server/validation"
	"go.uber.org/zap"
)

// KeyStore reads and updates the saved API keys.
type KeyStore interface {
	Load() keystore.Keys
	Update(fn func(*keystore.Keys)) error
}

var _ KeyStore = (*keystore.Store)(nil)

// KeysHandler serves GET and PUT /v1/keys. Keys are never returned in clear.
type KeysHandler struct {
	store  KeyStore
	logger *zap.Logger
}

func NewKeysHandler(store KeyStore, logger *zap.Logger) *KeysHandler {
	return &KeysHandler{store: store, logger: logger}
}

// KeysResponse describes the saved keys.
type KeysResponse struct {
	GeminiAPIKey      string `json:"gemini_api_key"`
	WeatherAPIKey     string `json:"weather_api_key"`
	GeminiConfigured  bool   `json:"gemini_configured"`
	WeatherConfigured bool   `json:"weather_configured"`
}

func newKeysResponse(k keystore.Keys) KeysResponse {
	return KeysResponse{
		GeminiAPIKey:      keystore.Mask(k.GeminiAPIKey),
		WeatherAPIKey:     keystore.Mask(k.WeatherAPIKey),
		GeminiConfigured:  k.GeminiAPIKey != "",
		WeatherConfigured: k.WeatherAPIKey != "",
	}
}

// Get handles GET /v1/keys.
func (h *KeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.logger, http.StatusOK, newKeysResponse(h.store.Load()))
}

// Put handles PUT /v1/keys. Omitted keys are left unchanged.
func (h *KeysHandler) Put(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.KeysRequest
	if herr := validation.DecodeJSON(r, requestID, &req); herr != nil {
		errors.WriteError(w, herr)
		return
	}

	err := h.store.Update(func(k *keystore.Keys) {
		if req.GeminiAPIKey != nil {
			k.GeminiAPIKey = strings.TrimSpace(*req.GeminiAPIKey)
		}
		if req.WeatherAPIKey != nil {
			k.WeatherAPIKey = strings.TrimSpace(*req.WeatherAPIKey)
		}
	})
	if err != nil {
		middleware.LoggerFrom(r.Context(), h.logger).Error("Failed to save keys", zap.Error(err))
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return
	}

	middleware.LoggerFrom(r.Context(), h.logger).Info("API keys updated",
		zap.Bool("gemini", req.GeminiAPIKey != nil),
		zap.Bool("weather", req.WeatherAPIKey != nil),
	)
	writeJSON(w, r, h.logger, http.StatusOK, newKeysResponse(h.store.Load()))
}

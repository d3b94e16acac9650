package handlers

import (
	"context"
	"net/http"

	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/server/middleware"
	"github.com/huulkit/huulkit/server/validation"
	"go.uber.org/zap"
)

// Refiner is the part of refine.Service the text handlers use.
type Refiner interface {
	Refine(ctx context.Context, text string, opts refine.Options) (string, error)
	Translate(ctx context.Context, text string, src, dst refine.Language) (string, error)
	TranslateAll(ctx context.Context, text string, src refine.Language) (map[refine.Language]string, error)
}

var _ Refiner = (*refine.Service)(nil)

// TextHandler serves the refinement and translation routes.
type TextHandler struct {
	svc       Refiner
	counter   *validation.TokenCounter
	maxTokens int
	logger    *zap.Logger
}

// NewTextHandler returns a handler. maxTokens <= 0 disables the input budget.
func NewTextHandler(svc Refiner, counter *validation.TokenCounter, maxTokens int, logger *zap.Logger) *TextHandler {
	if counter == nil {
		counter = validation.NewTokenCounterWith(validation.EstimateTokenizer{})
	}
	return &TextHandler{svc: svc, counter: counter, maxTokens: maxTokens, logger: logger}
}

// RefineResponse is the body returned by POST /v1/refine.
type RefineResponse struct {
	Refined string `json:"refined"`
}

// Refine handles POST /v1/refine.
func (h *TextHandler) Refine(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.RefineRequest
	if herr := validation.DecodeJSON(r, requestID, &req); herr != nil {
		errors.WriteError(w, herr)
		return
	}
	if herr := h.counter.ValidateTokens(requestID, req.Text, h.maxTokens); herr != nil {
		errors.WriteError(w, herr)
		return
	}

	opts := refine.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	refined, err := h.svc.Refine(r.Context(), req.Text, opts)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, RefineResponse{Refined: refined})
}

// TranslateResponse is the body returned by POST /v1/translate. Exactly one
// of Translation and Translations is set.
type TranslateResponse struct {
	Source       refine.Language            `json:"source"`
	Target       refine.Language            `json:"target,omitempty"`
	Translation  *string                    `json:"translation,omitempty"`
	Translations map[refine.Language]string `json:"translations,omitempty"`
}

// Translate handles POST /v1/translate.
func (h *TextHandler) Translate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.TranslateRequest
	if herr := validation.DecodeJSON(r, requestID, &req); herr != nil {
		errors.WriteError(w, herr)
		return
	}
	if herr := h.counter.ValidateTokens(requestID, req.Text, h.maxTokens); herr != nil {
		errors.WriteError(w, herr)
		return
	}

	// Both were checked by the "language" validation.
	src, _ := refine.ParseLanguage(req.Source)
	if req.Target == "" {
		out, err := h.svc.TranslateAll(r.Context(), req.Text, src)
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		writeJSON(w, r, h.logger, http.StatusOK, TranslateResponse{Source: src, Translations: out})
		return
	}

	dst, _ := refine.ParseLanguage(req.Target)
	out, err := h.svc.Translate(r.Context(), req.Text, src, dst)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, TranslateResponse{Source: src, Target: dst, Translation: &out})
}

// Package refine holds the text refinement and translation use cases: the
// option set, the supported languages, the prompts, and a Service that sends
// them to a language model.
package refine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generator produces a completion for a prompt. Any gollm.LLM satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// configurable is implemented by generators that know whether they have
// credentials to work with.
type configurable interface {
	Configured() bool
}

const (
	msgEmptyText          = "Text cannot be empty"
	msgServiceUnavailable = "Text refinement service is not configured"
	msgKeyMissing         = "Gemini API key not configured"
)

// Service runs refinements and translations against a Generator.
type Service struct {
	gen     Generator
	prompts *Prompts
	logger  *zap.Logger
}

// NewService returns a Service. A nil generator is allowed: every call then
// fails as not configured.
func NewService(gen Generator, logger *zap.Logger) (*Service, error) {
	prompts, err := NewPrompts()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, prompts: prompts, logger: logger}, nil
}

// Configured reports whether a call could reach a model.
func (s *Service) Configured() bool {
	if s.gen == nil {
		return false
	}
	if c, ok := s.gen.(configurable); ok {
		return c.Configured()
	}
	return true
}

// Refine rewrites text according to opts.
func (s *Service) Refine(ctx context.Context, text string, opts Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalid(msgEmptyText)
	}
	if !s.Configured() {
		return "", notConfigured(msgServiceUnavailable)
	}

	prompt, err := s.prompts.Refine(text, opts)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Refining text",
		zap.Int("length", len(text)),
		zap.Bool("combine_all", opts.CombineAll),
	)
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", s.generateFailure(ctx, err)
	}
	return cleanResponse(out), nil
}

// Translate converts text from src to dst. Blank text and src == dst return
// without calling the model.
func (s *Service) Translate(ctx context.Context, text string, src, dst Language) (string, error) {
	if !s.Configured() {
		return "", notConfigured(msgKeyMissing)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if src == dst {
		return text, nil
	}

	prompt, err := s.prompts.Translate(text, src, dst)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Translating text",
		zap.String("source", src.Code()),
		zap.String("target", dst.Code()),
	)
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", s.generateFailure(ctx, err)
	}
	return cleanResponse(out), nil
}

// TranslateAll translates text from src into every other supported
// language concurrently. The first failure cancels the remaining calls.
func (s *Service) TranslateAll(ctx context.Context, text string, src Language) (map[Language]string, error) {
	var (
		mu  sync.Mutex
		out = make(map[Language]string, len(Languages)-1)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, dst := range src.Others() {
		g.Go(func() error {
			t, err := s.Translate(gctx, text, src, dst)
			if err != nil {
				return err
			}
			mu.Lock()
			out[dst] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) generateFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("generation aborted: %w", ctxErr)
	}
	s.logger.Warn("Model call failed", zap.Error(err))
	return providerFailure(err)
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"google.golang.org/genai"
)

// GeminiName is the provider name of the primary model.
const GeminiName = "gemini"

// KeySource returns the saved Gemini API key. *keystore.Store satisfies it.
type KeySource interface {
	GeminiAPIKey() string
}

type generateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type clientFactory func(ctx context.Context, apiKey string) (generateContentFunc, error)

// Gemini calls the Gemini API. The key is looked up on every call so a key
// saved while the process runs is used right away; the SDK client is
// rebuilt only when the key changes.
type Gemini struct {
	keys        KeySource
	model       string
	temperature float32
	newClient   clientFactory

	mu        sync.Mutex
	clientKey string
	generate  generateContentFunc
}

// NewGemini returns the Gemini provider for model.
func NewGemini(keys KeySource, model string, temperature float64) *Gemini {
	return &Gemini{
		keys:        keys,
		model:       model,
		temperature: float32(temperature),
		newClient:   newGenAIClient,
	}
}

func newGenAIClient(ctx context.Context, apiKey string) (generateContentFunc, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent, nil
}

// Configured reports whether a key is saved.
func (g *Gemini) Configured() bool {
	return strings.TrimSpace(g.keys.GeminiAPIKey()) != ""
}

// Model returns the model name.
func (g *Gemini) Model() string {
	return g.model
}

// Generate sends the prompt. System messages become the system instruction;
// assistant messages are sent with the model role.
func (g *Gemini) Generate(ctx context.Context, prompt *gollm.Prompt, _ ...llm.GenerateOption) (string, error) {
	if prompt == nil || len(prompt.Messages) == 0 {
		return "", errors.New("prompt has no messages")
	}

	generate, err := g.client(ctx)
	if err != nil {
		return "", err
	}

	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range prompt.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", errors.New("prompt has no user message")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := generate(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

func (g *Gemini) client(ctx context.Context) (generateContentFunc, error) {
	apiKey := strings.TrimSpace(g.keys.GeminiAPIKey())
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generate != nil && g.clientKey == apiKey {
		return g.generate, nil
	}
	generate, err := g.newClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.generate, g.clientKey = generate, apiKey
	return generate, nil
}

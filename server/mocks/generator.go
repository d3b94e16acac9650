// Package mocks provides test doubles for the model providers and the
// config watcher.
package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

// Generator is a scriptable model provider.
//
//	gen := mocks.NewGenerator(func(ctx context.Context, p *gollm.Prompt) (string, error) {
//	    return "refined", nil
//	})
type Generator struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)

	configured atomic.Bool
	calls      atomic.Int32

	mu      sync.Mutex
	prompts []*gollm.Prompt
}

// NewGenerator returns a configured generator. A nil fn answers "".
func NewGenerator(fn func(context.Context, *gollm.Prompt) (string, error)) *Generator {
	g := &Generator{GenerateFunc: fn}
	g.configured.Store(true)
	return g
}

// Generate records the prompt and delegates to GenerateFunc.
func (g *Generator) Generate(ctx context.Context, prompt *gollm.Prompt, _ ...llm.GenerateOption) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Configured reports what SetConfigured last set (true by default).
func (g *Generator) Configured() bool {
	return g.configured.Load()
}

func (g *Generator) SetConfigured(v bool) {
	g.configured.Store(v)
}

// Calls returns how many times Generate ran.
func (g *Generator) Calls() int {
	return int(g.calls.Load())
}

// LastPrompt returns the most recent prompt, or nil.
func (g *Generator) LastPrompt() *gollm.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return nil
	}
	return g.prompts[len(g.prompts)-1]
}

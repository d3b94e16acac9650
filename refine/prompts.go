package refine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/gollm"
)

const (
	refineSystemPrompt = "You are a helpful assistant that refines text to make it better. " +
		"Your task is to take the input text and refine it according to the instructions. " +
		"Only return the refined text, without quotes, explanation, or other commentary."

	translateSystemPrompt = "You are a professional translator that accurately translates text between languages. " +
		"Your task is to translate the input text from the source language to the target language. " +
		"Maintain the original meaning, tone, and style as much as possible. " +
		"Only return the translated text, without quotes, explanation, or other commentary."

	refineTemplate = "Original text: {{.Text}}\n\n{{.Instructions}}\n\n" +
		"Return only the refined text without any explanations, quotes or additional commentary."

	translateTemplate = "Translate the following text from {{.Source}} to {{.Target}}:\n\n{{.Text}}\n\n" +
		"Return only the translated text without any explanations, quotes or additional commentary."
)

type refineInput struct {
	Text         string
	Instructions string
}

type translateInput struct {
	Text   string
	Source Language
	Target Language
}

// Prompts builds the chat prompts sent to the model. Templates are parsed
// once so a bad template fails at construction rather than per request.
type Prompts struct {
	refine    *template.Template
	translate *template.Template
}

// NewPrompts parses the built-in templates.
func NewPrompts() (*Prompts, error) {
	r, err := template.New("refine").Parse(refineTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template refine: %w", err)
	}
	t, err := template.New("translate").Parse(translateTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template translate: %w", err)
	}
	return &Prompts{refine: r, translate: t}, nil
}

// Refine returns the prompt for refining text with opts.
func (p *Prompts) Refine(text string, opts Options) (*gollm.Prompt, error) {
	return build(p.refine, refineSystemPrompt, refineInput{Text: text, Instructions: opts.Instructions()})
}

// Translate returns the prompt for translating text from src to dst.
func (p *Prompts) Translate(text string, src, dst Language) (*gollm.Prompt, error) {
	return build(p.translate, translateSystemPrompt, translateInput{Text: text, Source: src, Target: dst})
}

func build(tmpl *template.Template, system string, data any) (*gollm.Prompt, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template execution failed: %w", err)
	}
	return &gollm.Prompt{Messages: []gollm.PromptMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: buf.String()},
	}}, nil
}

var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}}

// cleanResponse trims the model output and drops one pair of wrapping quotes.
func cleanResponse(content string) string {
	content = strings.TrimSpace(content)
	for _, q := range quotePairs {
		if len(content) >= len(q[0])+len(q[1]) && strings.HasPrefix(content, q[0]) && strings.HasSuffix(content, q[1]) {
			inner := content[len(q[0]) : len(content)-len(q[1])]
			if !strings.Contains(inner, q[0]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return content
}

package session

import (
	"context"
	"sync"

	"github.com/huulkit/huulkit/refine"
)

// AllTranslator is the use case behind the translator screen.
type AllTranslator interface {
	TranslateAll(ctx context.Context, text string, src refine.Language) (map[refine.Language]string, error)
}

// TranslatorState is a snapshot of the translator screen.
type TranslatorState struct {
	Texts   map[refine.Language]string
	Source  refine.Language
	Loading bool
	Error   string
}

// Translator holds one text box per language. Editing a box makes its
// language the source of the next round.
type Translator struct {
	mu      sync.RWMutex
	texts   map[refine.Language]string
	source  refine.Language
	loading bool
	err     string
}

func NewTranslator() *Translator {
	return &Translator{
		texts:  make(map[refine.Language]string, len(refine.Languages)),
		source: refine.English,
	}
}

func (t *Translator) State() TranslatorState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	texts := make(map[refine.Language]string, len(t.texts))
	for l, s := range t.texts {
		texts[l] = s
	}
	return TranslatorState{Texts: texts, Source: t.source, Loading: t.loading, Error: t.err}
}

// Text returns the content of one language box.
func (t *Translator) Text(lang refine.Language) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.texts[lang]
}

// SetText updates a language box and makes it the source.
func (t *Translator) SetText(lang refine.Language, text string) {
	t.mu.Lock()
	t.texts[lang] = text
	t.source = lang
	t.mu.Unlock()
}

// Begin starts a round from the source box.
func (t *Translator) Begin() (text string, src refine.Language) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.err = ""
	t.loading = true
	return t.texts[t.source], t.source
}

// Finish fills the other boxes, or records the failure and leaves them as
// they were.
func (t *Translator) Finish(results map[refine.Language]string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.err = errorText(err)
	} else {
		for l, s := range results {
			t.texts[l] = s
		}
	}
	t.loading = false
}

// Run performs a full Begin/TranslateAll/Finish round.
func (t *Translator) Run(ctx context.Context, tr AllTranslator) TranslatorState {
	text, src := t.Begin()
	results, err := tr.TranslateAll(ctx, text, src)
	t.Finish(results, err)
	return t.State()
}

package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/refine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type refinerFunc func(ctx context.Context, text string, opts refine.Options) (string, error)

func (f refinerFunc) Refine(ctx context.Context, text string, opts refine.Options) (string, error) {
	return f(ctx, text, opts)
}

type translatorFunc func(ctx context.Context, text string, src refine.Language) (map[refine.Language]string, error)

func (f translatorFunc) TranslateAll(ctx context.Context, text string, src refine.Language) (map[refine.Language]string, error) {
	return f(ctx, text, src)
}

func TestMainTabs(t *testing.T) {
	var m Main
	assert.Equal(t, TabHelper, m.SelectedTab())
	m.SelectTab(TabTranslator)
	assert.Equal(t, TabTranslator, m.SelectedTab())
	assert.Equal(t, "Mouth translator", TabTranslator.String())
}

func TestRefinementDefaults(t *testing.T) {
	st := NewRefinement().State()
	assert.Equal(t, refine.Options{Shorten: true}, st.Options)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestRefinementBlankInput(t *testing.T) {
	r := NewRefinement()
	r.SetInput("   ")

	called := false
	st := r.Run(context.Background(), refinerFunc(func(context.Context, string, refine.Options) (string, error) {
		called = true
		return "", nil
	}))

	assert.False(t, called)
	assert.Equal(t, "Input text cannot be empty", st.Error)
	assert.False(t, st.Loading)
}

func TestRefinementSuccess(t *testing.T) {
	r := NewRefinement()
	r.SetInput("please do the thing now")
	r.UpdateOptions(func(o *refine.Options) { o.MakeKinder = true })

	var gotOpts refine.Options
	st := r.Run(context.Background(), refinerFunc(func(_ context.Context, text string, opts refine.Options) (string, error) {
		gotOpts = opts
		return "Could you please do the thing?", nil
	}))

	assert.Equal(t, refine.Options{Shorten: true, MakeKinder: true}, gotOpts)
	assert.Equal(t, "Could you please do the thing?", st.Output)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestRefinementFailureKeepsOutput(t *testing.T) {
	r := NewRefinement()
	r.SetInput("text")
	r.Finish("earlier result", nil)

	_, _, ok := r.Begin()
	require.True(t, ok)
	assert.True(t, r.State().Loading)

	r.Finish("", errors.New("Error with Gemini API: quota"))
	st := r.State()
	assert.Equal(t, "Error: Error with Gemini API: quota", st.Error)
	assert.Equal(t, "earlier result", st.Output)
	assert.False(t, st.Loading)
}

func TestTranslatorRun(t *testing.T) {
	tr := NewTranslator()
	tr.SetText(refine.Swedish, "Hej")

	st := tr.Run(context.Background(), translatorFunc(func(_ context.Context, text string, src refine.Language) (map[refine.Language]string, error) {
		assert.Equal(t, "Hej", text)
		assert.Equal(t, refine.Swedish, src)
		return map[refine.Language]string{refine.English: "Hi", refine.Vietnamese: "Xin chào"}, nil
	}))

	assert.Equal(t, map[refine.Language]string{
		refine.Swedish:    "Hej",
		refine.English:    "Hi",
		refine.Vietnamese: "Xin chào",
	}, st.Texts)
	assert.Equal(t, refine.Swedish, st.Source)
	assert.False(t, st.Loading)
}

func TestTranslatorFailure(t *testing.T) {
	tr := NewTranslator()
	tr.SetText(refine.English, "Hello")
	tr.SetText(refine.Swedish, "Hej")
	tr.SetText(refine.English, "Hello again")

	st := tr.Run(context.Background(), translatorFunc(func(context.Context, string, refine.Language) (map[refine.Language]string, error) {
		return nil, errors.New("Gemini API key not configured")
	}))

	assert.Equal(t, "Error: Gemini API key not configured", st.Error)
	assert.Equal(t, "Hej", st.Texts[refine.Swedish])
	assert.Equal(t, refine.English, st.Source)
}

func TestConfigDialog(t *testing.T) {
	store, err := keystore.New(filepath.Join(t.TempDir(), "config.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.UpdateGeminiAPIKey("g-old"))

	d := NewConfigDialog(store)
	assert.False(t, d.Visible())

	d.Show()
	assert.True(t, d.Visible())
	gemini, weather := d.Inputs()
	assert.Equal(t, "g-old", gemini)
	assert.Equal(t, "", weather)

	d.SetGeminiInput("g-new")
	d.SetWeatherInput("w-new")
	require.NoError(t, d.Save())

	assert.False(t, d.Visible())
	assert.Equal(t, keystore.Keys{GeminiAPIKey: "g-new", WeatherAPIKey: "w-new"}, store.Load())
}

func TestConfigDialogHideDiscards(t *testing.T) {
	store, err := keystore.New(filepath.Join(t.TempDir(), "config.json"), zaptest.NewLogger(t))
	require.NoError(t, err)

	d := NewConfigDialog(store)
	d.Show()
	d.SetGeminiInput("typed but not saved")
	d.Hide()

	assert.Equal(t, "", store.GeminiAPIKey())
	d.Show()
	gemini, _ := d.Inputs()
	assert.Equal(t, "", gemini)
}

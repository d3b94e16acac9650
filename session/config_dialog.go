package session

import (
	"fmt"
	"sync"

	"github.com/huulkit/huulkit/keystore"
)

// KeyStore is the persistence behind the API key dialog.
type KeyStore interface {
	GeminiAPIKey() string
	WeatherAPIKey() string
	UpdateGeminiAPIKey(string) error
	UpdateWeatherAPIKey(string) error
}

var _ KeyStore = (*keystore.Store)(nil)

// ConfigDialog is the API key dialog state.
type ConfigDialog struct {
	store KeyStore

	mu           sync.RWMutex
	geminiInput  string
	weatherInput string
	visible      bool
}

func NewConfigDialog(store KeyStore) *ConfigDialog {
	return &ConfigDialog{store: store}
}

// Load refreshes the inputs from the store without showing the dialog.
func (d *ConfigDialog) Load() {
	gemini, weather := d.store.GeminiAPIKey(), d.store.WeatherAPIKey()
	d.mu.Lock()
	d.geminiInput, d.weatherInput = gemini, weather
	d.mu.Unlock()
}

// Show reloads the saved keys into the inputs and shows the dialog.
func (d *ConfigDialog) Show() {
	d.Load()
	d.mu.Lock()
	d.visible = true
	d.mu.Unlock()
}

func (d *ConfigDialog) Hide() {
	d.mu.Lock()
	d.visible = false
	d.mu.Unlock()
}

func (d *ConfigDialog) Visible() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visible
}

func (d *ConfigDialog) SetGeminiInput(key string) {
	d.mu.Lock()
	d.geminiInput = key
	d.mu.Unlock()
}

func (d *ConfigDialog) SetWeatherInput(key string) {
	d.mu.Lock()
	d.weatherInput = key
	d.mu.Unlock()
}

// Inputs returns the current (unsaved) input values.
func (d *ConfigDialog) Inputs() (gemini, weather string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.geminiInput, d.weatherInput
}

// Save writes both inputs to the store and hides the dialog. The dialog
// stays open if a write fails.
func (d *ConfigDialog) Save() error {
	gemini, weather := d.Inputs()
	if err := d.store.UpdateGeminiAPIKey(gemini); err != nil {
		return fmt.Errorf("save gemini key: %w", err)
	}
	if err := d.store.UpdateWeatherAPIKey(weather); err != nil {
		return fmt.Errorf("save weather key: %w", err)
	}
	d.Hide()
	return nil
}

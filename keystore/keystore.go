// Package keystore persists the user's API keys as a small JSON document in
// the home directory. The file is read wholesale on every access and rewritten
// wholesale on every update, so edits made by another process are picked up
// on the next call.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	configDir  = ".huulkit"
	configFile = "config.json"
)

// Keys is the persisted record. Unknown fields in the file are ignored.
type Keys struct {
	GeminiAPIKey  string `json:"geminiApiKey"`
	WeatherAPIKey string `json:"weatherApiKey"`
}

// Store reads and writes the key file.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// DefaultPath returns $HOME/.huulkit/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDir, configFile), nil
}

// New returns a store backed by path. An empty path selects DefaultPath.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the location of the key file.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current record. A missing file yields empty keys; an
// unreadable or corrupt one yields empty keys and a warning.
func (s *Store) Load() Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() Keys {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Error loading key file", zap.String("path", s.path), zap.Error(err))
		}
		return Keys{}
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		s.logger.Warn("Key file is not valid JSON, using empty keys",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return Keys{}
	}
	return keys
}

// Save replaces the file with keys, pretty-printed.
func (s *Store) Save(keys Keys) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(keys)
}

func (s *Store) save(keys Keys) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), configFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write keys: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}
	return nil
}

// Update applies fn to the current record and saves the result.
func (s *Store) Update(fn func(*Keys)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.load()
	fn(&keys)
	return s.save(keys)
}

// GeminiAPIKey returns the saved Gemini key, "" if unset.
func (s *Store) GeminiAPIKey() string {
	return s.Load().GeminiAPIKey
}

// UpdateGeminiAPIKey saves the Gemini key, keeping the other key.
func (s *Store) UpdateGeminiAPIKey(apiKey string) error {
	return s.Update(func(k *Keys) { k.GeminiAPIKey = strings.TrimSpace(apiKey) })
}

// WeatherAPIKey returns the saved weather key, "" if unset.
func (s *Store) WeatherAPIKey() string {
	return s.Load().WeatherAPIKey
}

// UpdateWeatherAPIKey saves the weather key, keeping the other key.
func (s *Store) UpdateWeatherAPIKey(apiKey string) error {
	return s.Update(func(k *Keys) { k.WeatherAPIKey = strings.TrimSpace(apiKey) })
}

// Mask hides all but the last four characters of a key.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), ".huulkit", "config.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, Keys{}, s.Load())
	assert.Equal(t, "", s.GeminiAPIKey())
	assert.Equal(t, "", s.WeatherAPIKey())
}

func TestUpdateKeepsOtherKey(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpdateGeminiAPIKey("gem-123"))
	require.NoError(t, s.UpdateWeatherAPIKey(" wx-456 "))

	assert.Equal(t, "gem-123", s.GeminiAPIKey())
	assert.Equal(t, "wx-456", s.WeatherAPIKey())

	require.NoError(t, s.UpdateGeminiAPIKey(""))
	assert.Equal(t, Keys{WeatherAPIKey: "wx-456"}, s.Load())
}

func TestFileFormat(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(Keys{GeminiAPIKey: "g", WeatherAPIKey: "w"}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"geminiApiKey\": \"g\",\n  \"weatherApiKey\": \"w\"\n}", string(data))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUnknownKeysIgnored(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	raw := map[string]string{"geminiApiKey": "g", "theme": "dark"}
	data, _ := json.Marshal(raw)
	require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

	assert.Equal(t, Keys{GeminiAPIKey: "g"}, s.Load())
}

func TestCorruptFileYieldsDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	assert.Equal(t, Keys{}, s.Load())

	// An update rewrites the corrupt file with a valid document.
	require.NoError(t, s.UpdateWeatherAPIKey("w"))
	assert.Equal(t, Keys{WeatherAPIKey: "w"}, s.Load())
}

func TestConcurrentUpdates(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpdateGeminiAPIKey("g"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpdateWeatherAPIKey("w"))
		}()
	}
	wg.Wait()

	assert.Equal(t, Keys{GeminiAPIKey: "g", WeatherAPIKey: "w"}, s.Load())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.huulkit/config.json", p)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "******7890", Mask("1234567890"))
}

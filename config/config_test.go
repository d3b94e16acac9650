package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoadValidConfig(t *testing.T) {
	yamlConfig := `
server:
  port: 9090
  read_timeout: 20s
  write_timeout: 90s
  request_timeout: 45s

llm:
  model: gemini-2.0-flash-lite
  temperature: 0.4
  backup_providers:
    - provider: openai
      model: gpt-4o-mini
      api_key: sk-test

provider_preference: [gemini, openai]

weather:
  base_url: http://localhost:9999/current.json
  cache:
    enable: true
    type: memory
    ttl: 5m

logging:
  level: debug
  format: json
`

	config, err := Load(strings.NewReader(yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host, "unset fields keep defaults")
	assert.Equal(t, 45*time.Second, config.Server.RequestTimeout)
	assert.Equal(t, "gemini-2.0-flash-lite", config.LLM.Model)
	assert.InDelta(t, 0.4, config.LLM.Temperature, 1e-9)
	require.Len(t, config.LLM.BackupProviders, 1)
	assert.Equal(t, "openai", config.LLM.BackupProviders[0].Provider)
	assert.Equal(t, []string{"gemini", "openai"}, config.ProviderPreference)
	assert.Equal(t, 5*time.Minute, config.Weather.Cache.TTL)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "127.0.0.1:9090", config.Server.Addr())
}

func TestLoadEmptyUsesDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name:   "invalid port",
			config: "server:\n  port: 70000\n",
			want:   "invalid port",
		},
		{
			name:   "write timeout below request timeout",
			config: "server:\n  write_timeout: 10s\n  request_timeout: 30s\n",
			want:   "must exceed request timeout",
		},
		{
			name:   "empty model",
			config: "llm:\n  model: \"\"\n",
			want:   "empty LLM model",
		},
		{
			name:   "temperature out of range",
			config: "llm:\n  temperature: 3\n",
			want:   "temperature out of range",
		},
		{
			name:   "backup provider without model",
			config: "llm:\n  backup_providers:\n    - provider: openai\n",
			want:   "backup provider 0",
		},
		{
			name:   "unknown cache type",
			config: "weather:\n  cache:\n    enable: true\n    type: file\n    ttl: 1m\n",
			want:   "invalid cache type",
		},
		{
			name:   "redis cache without address",
			config: "weather:\n  cache:\n    enable: true\n    type: redis\n    ttl: 1m\n",
			want:   "redis cache requires",
		},
		{
			name:   "invalid log level",
			config: "logging:\n  level: trace\n",
			want:   "invalid log level",
		},
		{
			name:   "invalid log format",
			config: "logging:\n  format: xml\n",
			want:   "invalid log format",
		},
		{
			name:   "zero queue",
			config: "queue:\n  enabled: true\n  initial_size: 0\n",
			want:   "queue initial size",
		},
		{
			name:   "malformed yaml",
			config: "server: [",
			want:   "decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("HUULKIT_TEST_PORT", "9191")
	t.Setenv("HUULKIT_TEST_REDIS", "")

	yamlConfig := `
server:
  port: ${HUULKIT_TEST_PORT}
weather:
  cache:
    enable: true
    type: redis
    ttl: 1m
    redis:
      address: ${HUULKIT_TEST_REDIS:-localhost:6379}
`
	config, err := Load(strings.NewReader(yamlConfig))
	require.NoError(t, err)
	assert.Equal(t, 9191, config.Server.Port)
	assert.Equal(t, "localhost:6379", config.Weather.Cache.Redis.Address)
}

func TestExpandEnvVarsUnterminated(t *testing.T) {
	_, err := expandEnvVars("key: ${UNTERMINATED")
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config file")
}

func TestLoggingConfigNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, level, err := LoggingConfig{Level: "warn", Format: format}.NewLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Equal(t, zapcore.WarnLevel, level.Level())

		level.SetLevel(zapcore.DebugLevel)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}
}

func TestConfigWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huulkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	cw, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, "info", cw.GetCurrentConfig().Logging.Level)
	updates := cw.Subscribe()

	replaceFile(t, path, "logging:\n  level: debug\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-updates:
			if cfg.Logging.Level == "debug" {
				assert.Equal(t, "debug", cw.GetCurrentConfig().Logging.Level)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestConfigWatcherIgnoresInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huulkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	cw, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer cw.Close()

	replaceFile(t, path, "logging:\n  level: loud\n")
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, "warn", cw.GetCurrentConfig().Logging.Level)
}

// replaceFile swaps the file in one rename so the watcher never sees a
// half-written document.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestStaticWatcher(t *testing.T) {
	cfg := DefaultConfig()
	w := NewStaticWatcher(cfg)
	assert.Same(t, cfg, w.GetCurrentConfig())

	updates := w.Subscribe()
	require.NoError(t, w.Close())
	_, ok := <-updates
	assert.False(t, ok)
}

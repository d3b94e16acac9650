package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/server/mocks"
	"github.com/huulkit/huulkit/server/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	server  *Server
	watcher *mocks.ConfigWatcher
	gen     *mocks.Generator
	keys    *keystore.Store
	cfg     *config.Config
}

func testConfig(weatherURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.LLM.TokenizerModel = ""
	cfg.Weather.BaseURL = weatherURL
	cfg.Queue.SaveInterval = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config, opts ...Option) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig("http://127.0.0.1:1/current.json")
	}

	keys, err := keystore.New(filepath.Join(t.TempDir(), "config.json"), zaptest.NewLogger(t))
	require.NoError(t, err)

	gen := mocks.NewGenerator(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "refined text", nil
	})
	watcher := mocks.NewConfigWatcher(cfg)

	opts = append([]Option{
		WithKeyStore(keys),
		WithProviders(map[string]provider.Generator{provider.GeminiName: gen}),
	}, opts...)
	s, err := NewServer(watcher, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)

	return &testEnv{server: s, watcher: watcher, gen: gen, keys: keys, cfg: cfg}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:50000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRefineRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/v1/refine", `{"text":"please make this shorter","options":{"combine_all":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time"))

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "refined text", resp["refined"])
	assert.Equal(t, 1, env.gen.Calls())
}

func TestRefineRouteNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.SetConfigured(false)

	rec := env.do(http.MethodPost, "/v1/refine", `{"text":"hello"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Text refinement service is not configured")
	assert.Equal(t, 0, env.gen.Calls())
}

func TestTranslateRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/v1/translate", `{"text":"Hello","source":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Translations map[string]string `json:"translations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Translations, 2)
	assert.Contains(t, resp.Translations, "Swedish")
	assert.Contains(t, resp.Translations, "Vietnamese")
}

func TestWeatherRoutes(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "wx-good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"location":{"localtime":"2024-11-03 14:05"},"current":{"temp_c":21.7,"condition":{"icon":"//cdn/a.png"}}}`)
	}))
	defer api.Close()

	env := newTestEnv(t, testConfig(api.URL))

	rec := env.do(http.MethodGet, "/v1/weather", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Weather API key is not set")

	rec = env.do(http.MethodPut, "/v1/keys", `{"weather_api_key":"wx-bad"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/weather/london", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "You must provide correct API key")

	rec = env.do(http.MethodPut, "/v1/keys", `{"weather_api_key":"wx-good"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/weather", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Cities []struct {
			City        string `json:"city"`
			Temperature string `json:"temperature"`
		} `json:"cities"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Cities, 3)
	assert.Equal(t, "London", resp.Cities[0].City)
	assert.Equal(t, "Stockholm", resp.Cities[1].City)
	assert.Equal(t, "Hanoi", resp.Cities[2].City)
	assert.Equal(t, "21°", resp.Cities[2].Temperature)

	rec = env.do(http.MethodGet, "/v1/weather/paris", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeysRouteMasksKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.keys.UpdateGeminiAPIKey("gemini-secret-9876"))

	rec := env.do(http.MethodGet, "/v1/keys", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gemini-secret")
	assert.Contains(t, rec.Body.String(), `"gemini_api_key":"**************9876"`)
	assert.Contains(t, rec.Body.String(), `"gemini_configured":true`)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"gemini"`)

	rec = env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `huulkit_http_requests_total{endpoint="/health",status="200"} 1`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/v2/refine", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"not_found"`)

	rec = env.do(http.MethodGet, "/v1/refine", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitAndReload(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/current.json")
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Hour}
	env := newTestEnv(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/v1/keys", "").Code)
	}
	rec := env.do(http.MethodGet, "/v1/keys", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// /health is outside the limited group.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "").Code)

	updated := *cfg
	updated.RateLimit.Enabled = false
	env.server.applyConfig(&updated)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/v1/keys", "").Code)
}

func TestServeAndHotReload(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	env := newTestEnv(t, nil, WithLogLevel(level))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	updated := *env.cfg
	updated.Logging.Level = "debug"
	updated.Queue.InitialSize = 32
	env.watcher.UpdateConfig(&updated)

	require.Eventually(t, func() bool {
		return level.Level() == zapcore.DebugLevel && env.server.queue.GetMaxSize() == 32
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	<-env.server.Stopped()
}

func TestStartFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig("http://127.0.0.1:1/current.json")
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	env := newTestEnv(t, cfg)

	err = env.server.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}

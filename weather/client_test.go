package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticKey string

func (k staticKey) WeatherAPIKey() string { return string(k) }

const londonJSON = `{
  "location": {"name": "London", "country": "UK", "localtime": "2024-11-03 14:05"},
  "current": {"temp_c": 9.8, "is_day": 1, "condition": {"text": "Cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/119.png"}}
}`

func newAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestInfo(t *testing.T) {
	var gotQuery atomic.Value
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(londonJSON))
	})

	c := NewClient(staticKey("wx-key"), zaptest.NewLogger(t), WithBaseURL(srv.URL))
	info, err := c.Info(context.Background(), Cities[0])
	require.NoError(t, err)

	assert.Equal(t, Info{
		City:        "London",
		Temperature: "9°",
		IconURL:     "https://cdn.weatherapi.com/weather/64x64/day/119.png",
		LocalTime:   "14:05",
	}, info)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"wx-key"}, q["key"])
	assert.Equal(t, []string{"London"}, q["q"])
	assert.Equal(t, []string{"no"}, q["aqi"])
}

func TestInfoMissingKey(t *testing.T) {
	var hits atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	c := NewClient(staticKey("  "), zaptest.NewLogger(t), WithBaseURL(srv.URL))
	_, err := c.Info(context.Background(), Cities[1])

	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindNotConfigured, werr.Kind)
	assert.Equal(t, "Weather API key is not set", err.Error())
	assert.Zero(t, hits.Load())
}

func TestInfoRejected(t *testing.T) {
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":2008,"message":"API key has been disabled."}}`))
	})

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "calls"}, []string{"city", "outcome"})
	c := NewClient(staticKey("bad"), zaptest.NewLogger(t),
		WithBaseURL(srv.URL),
		WithMetrics(calls, prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cache"}, []string{"result"})),
	)
	_, err := c.Info(context.Background(), Cities[2])

	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindUpstream, werr.Kind)
	assert.Equal(t, "You must provide correct API key", err.Error())
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("Hanoi", "rejected")))
}

func TestInfoServerError(t *testing.T) {
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	b := &countingBreaker{}
	c := NewClient(staticKey("k"), zaptest.NewLogger(t), WithBaseURL(srv.URL), WithBreaker(b))
	_, err := c.Info(context.Background(), Cities[0])

	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindUpstream, werr.Kind)
	assert.Equal(t, "You must provide correct API key", err.Error())
	assert.Equal(t, 1, b.failures, "5xx answers count against the breaker")
}

type countingBreaker struct {
	failures int
}

func (b *countingBreaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	res, err := req()
	if err != nil {
		b.failures++
	}
	return res, err
}

func TestRejectedDoesNotTripBreaker(t *testing.T) {
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	b := &countingBreaker{}
	c := NewClient(staticKey("bad"), zaptest.NewLogger(t), WithBaseURL(srv.URL), WithBreaker(b))
	_, err := c.Info(context.Background(), Cities[0])
	require.Error(t, err)
	assert.Zero(t, b.failures)
}

func TestBreakerErrorSurfaces(t *testing.T) {
	open := errors.New("circuit breaker is open")
	c := NewClient(staticKey("k"), zaptest.NewLogger(t), WithBreaker(breakerFunc(func() error { return open })))

	_, err := c.Info(context.Background(), Cities[0])
	assert.ErrorIs(t, err, open)
}

type breakerFunc func() error

func (f breakerFunc) Execute(func() (interface{}, error)) (interface{}, error) {
	return nil, f()
}

func TestInfoUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(londonJSON))
	})

	c := NewClient(staticKey("k"), zaptest.NewLogger(t),
		WithBaseURL(srv.URL),
		WithCache(NewMemoryCache(time.Minute)),
	)
	for i := 0; i < 3; i++ {
		_, err := c.Info(context.Background(), Cities[0])
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCacheScopedToKey(t *testing.T) {
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(londonJSON))
	})

	var key atomic.Value
	key.Store("good")
	c := NewClient(keyFunc(func() string { return key.Load().(string) }), zaptest.NewLogger(t),
		WithBaseURL(srv.URL),
		WithCache(NewMemoryCache(time.Minute)),
	)

	info, err := c.Info(context.Background(), Cities[0])
	require.NoError(t, err)
	assert.Equal(t, "9°", info.Temperature)

	key.Store("wrong")
	_, err = c.Info(context.Background(), Cities[0])
	assert.EqualError(t, err, "You must provide correct API key")

	key.Store("good")
	_, err = c.Info(context.Background(), Cities[0])
	assert.NoError(t, err)
}

type keyFunc func() string

func (f keyFunc) WeatherAPIKey() string { return f() }

func TestForAll(t *testing.T) {
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "London":
			_, _ = w.Write([]byte(londonJSON))
		case "Stockholm":
			_, _ = w.Write([]byte(`{"location":{"localtime":"2024-11-03 15:05"},"current":{"temp_c":-2.7,"condition":{"icon":"//x/s.png"}}}`))
		case "Hanoi":
			_, _ = w.Write([]byte(`{"location":{"localtime":"2024-11-03 21:05"},"current":{"temp_c":27.1,"condition":{"icon":"//x/h.png"}}}`))
		}
	})

	c := NewClient(staticKey("k"), zaptest.NewLogger(t), WithBaseURL(srv.URL))
	infos, err := c.ForAll(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, "London", infos[0].City)
	assert.Equal(t, "Stockholm", infos[1].City)
	assert.Equal(t, "-2°", infos[1].Temperature)
	assert.Equal(t, "27°", infos[2].Temperature)
	assert.Equal(t, "21:05", infos[2].LocalTime)
}

func TestForAllFailure(t *testing.T) {
	c := NewClient(staticKey(""), zaptest.NewLogger(t))
	infos, err := c.ForAll(context.Background())
	assert.Nil(t, infos)
	assert.EqualError(t, err, "Weather API key is not set")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0°", FormatTemperature(0.9))
	assert.Equal(t, "12°", FormatTemperature(12.99))
	assert.Equal(t, "12:00", LocalClock("2024-01-01 12:00"))
	assert.Equal(t, "12:00", LocalClock("12:00"))
}

func TestParseCity(t *testing.T) {
	c, err := ParseCity("stockholm")
	require.NoError(t, err)
	assert.Equal(t, "Stockholm", c.Name)

	_, err = ParseCity("Paris")
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindUnknownCity, werr.Kind)
}

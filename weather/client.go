// Package weather fetches current conditions for the sidebar cities from
// weatherapi.com and formats them for display.
package weather

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the current-conditions endpoint.
const DefaultBaseURL = "http://api.weatherapi.com/v1/current.json"

const (
	msgKeyMissing = "Weather API key is not set"
	msgBadKey     = "You must provide correct API key"
)

// Info is what the sidebar shows for one city.
type Info struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	IconURL     string `json:"icon_url"`
	LocalTime   string `json:"local_time"`
}

// KeySource returns the saved weather API key.
type KeySource interface {
	WeatherAPIKey() string
}

// Breaker guards outbound calls. *circuitbreaker.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

type apiResponse struct {
	Location struct {
		Name      string `json:"name"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}

// Client talks to the weather API.
type Client struct {
	baseURL    string
	keys       KeySource
	httpClient *http.Client
	cache      Cache
	breaker    Breaker
	logger     *zap.Logger

	calls     *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the default client with a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache enables response caching. A nil cache is ignored.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithBreaker routes upstream calls through b.
func WithBreaker(b Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithMetrics records upstream calls by outcome and cache lookups by result.
func WithMetrics(calls, cacheHits *prometheus.CounterVec) Option {
	return func(c *Client) {
		c.calls = calls
		c.cacheHits = cacheHits
	}
}

// NewClient returns a client reading its key from keys on every call.
func NewClient(keys KeySource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		keys:       keys,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns the current conditions for city.
func (c *Client) Info(ctx context.Context, city City) (Info, error) {
	apiKey := strings.TrimSpace(c.keys.WeatherAPIKey())
	if apiKey == "" {
		return Info{}, &Error{Kind: KindNotConfigured, Message: msgKeyMissing}
	}

	key := cacheKey(apiKey, city)
	if c.cache != nil {
		info, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("Weather cache read failed", zap.String("city", city.Name), zap.Error(err))
		case ok:
			c.observeCache("hit")
			return info, nil
		default:
			c.observeCache("miss")
		}
	}

	info, err := c.fetch(ctx, apiKey, city)
	if err != nil {
		return Info{}, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, info); err != nil {
			c.logger.Warn("Weather cache write failed", zap.String("city", city.Name), zap.Error(err))
		}
	}
	return info, nil
}

// ForAll fetches every city concurrently, in Cities order.
func (c *Client) ForAll(ctx context.Context) ([]Info, error) {
	out := make([]Info, len(Cities))
	g, gctx := errgroup.WithContext(ctx)
	for i, city := range Cities {
		g.Go(func() error {
			info, err := c.Info(gctx, city)
			if err != nil {
				return err
			}
			out[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// cacheKey scopes cached conditions to the key that fetched them, so a
// changed key is checked against the API again.
func cacheKey(apiKey string, city City) string {
	sum := sha256.Sum256([]byte(apiKey))
	return city.Query + ":" + hex.EncodeToString(sum[:8])
}

// rejected carries a 4xx answer past the breaker without counting it as an
// upstream failure.
type rejected struct {
	status int
}

// statusError is a 5xx answer. It counts as a breaker failure.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("weather API returned %d", e.status)
}

func (c *Client) fetch(ctx context.Context, apiKey string, city City) (Info, error) {
	call := func() (interface{}, error) {
		return c.do(ctx, apiKey, city)
	}

	var (
		result interface{}
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
	} else {
		result, err = call()
	}

	var serr *statusError
	switch {
	case errors.As(err, &serr):
		result, err = rejected{status: serr.status}, nil
	case err != nil:
		c.observeCall(city, "error")
		c.logger.Warn("Weather request failed", zap.String("city", city.Name), zap.Error(err))
		return Info{}, &Error{Kind: KindUpstream, Message: "Error fetching weather: " + err.Error(), Err: err}
	}

	switch r := result.(type) {
	case rejected:
		c.observeCall(city, "rejected")
		c.logger.Warn("Weather API rejected request",
			zap.String("city", city.Name),
			zap.Int("status", r.status),
		)
		werr := &Error{Kind: KindUpstream, Message: msgBadKey}
		if serr != nil {
			werr.Err = serr
		}
		return Info{}, werr
	case Info:
		c.observeCall(city, "success")
		return r, nil
	default:
		return Info{}, fmt.Errorf("unexpected weather result %T", result)
	}
}

func (c *Client) do(ctx context.Context, apiKey string, city City) (interface{}, error) {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("q", city.Query)
	q.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &statusError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return rejected{status: resp.StatusCode}, nil
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	return toInfo(city, body), nil
}

func toInfo(city City, body apiResponse) Info {
	return Info{
		City:        city.Name,
		Temperature: FormatTemperature(body.Current.TempC),
		IconURL:     "https:" + body.Current.Condition.Icon,
		LocalTime:   LocalClock(body.Location.LocalTime),
	}
}

// FormatTemperature truncates to whole degrees and appends the degree sign.
func FormatTemperature(tempC float64) string {
	return strconv.Itoa(int(tempC)) + "°"
}

// LocalClock returns the time part of "2006-01-02 15:04", or the whole
// string when it has no space.
func LocalClock(localtime string) string {
	if _, after, ok := strings.Cut(localtime, " "); ok {
		return after
	}
	return localtime
}

func (c *Client) observeCall(city City, outcome string) {
	if c.calls != nil {
		c.calls.WithLabelValues(city.Name, outcome).Inc()
	}
}

func (c *Client) observeCache(result string) {
	if c.cacheHits != nil {
		c.cacheHits.WithLabelValues(result).Inc()
	}
}

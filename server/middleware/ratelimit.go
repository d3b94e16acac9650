package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/server/metrics"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client address. Limits can be changed at
// runtime; existing clients pick up the new limit on their next request.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	cfg      config.RateLimitConfig
	metrics  *metrics.Metrics
}

// NewRateLimiter creates a limiter. metrics may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		cfg:      cfg,
		metrics:  m,
	}
}

// Update applies a reloaded configuration.
func (rl *RateLimiter) Update(cfg config.RateLimitConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cfg = cfg
	limit, burst := limits(cfg)
	for _, l := range rl.visitors {
		l.SetLimit(limit)
		l.SetBurst(burst)
	}
}

func limits(cfg config.RateLimitConfig) (rate.Limit, int) {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return rate.Inf, 0
	}
	return rate.Every(cfg.Window / time.Duration(cfg.Requests)), cfg.Requests
}

func (rl *RateLimiter) get(client string) (*rate.Limiter, config.RateLimitConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.visitors[client]
	if !ok {
		l = rate.NewLimiter(limits(rl.cfg))
		rl.visitors[client] = l
	}
	return l, rl.cfg
}

// Reset forgets every client.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.visitors = make(map[string]*rate.Limiter)
	rl.mu.Unlock()
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		limiter, cfg := rl.get(client)
		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		res := limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			if rl.metrics != nil {
				rl.metrics.RateLimitHits.WithLabelValues(client).Inc()
			}

			retryAfter := int(math.Ceil(delay.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

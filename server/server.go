// Package server assembles the Huulkit HTTP gateway: the provider manager,
// the refine service, the weather client, the middleware stack and the
// routes, plus graceful shutdown and configuration hot reload.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/server/circuitbreaker"
	"github.com/huulkit/huulkit/server/handlers"
	"github.com/huulkit/huulkit/server/metrics"
	"github.com/huulkit/huulkit/server/middleware"
	"github.com/huulkit/huulkit/server/provider"
	"github.com/huulkit/huulkit/server/validation"
	"github.com/huulkit/huulkit/weather"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server is the gateway process.
type Server struct {
	httpServer    *http.Server
	configWatcher config.Watcher
	logger        *zap.Logger
	level         *zap.AtomicLevel

	metrics     *metrics.Metrics
	providers   *provider.Manager
	keys        *keystore.Store
	rateLimiter *middleware.RateLimiter
	queue       *middleware.QueueMiddleware
	closers     []io.Closer

	router http.Handler

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	providers map[string]provider.Generator
	keys      *keystore.Store
	level     *zap.AtomicLevel
}

// WithProviders replaces the Gemini and backup providers built from config.
func WithProviders(p map[string]provider.Generator) Option {
	return func(o *options) { o.providers = p }
}

// WithKeyStore uses store instead of the one at config keystore.path.
func WithKeyStore(store *keystore.Store) Option {
	return func(o *options) { o.keys = store }
}

// WithLogLevel lets configuration reloads change the verbosity of the
// process logger.
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(o *options) { o.level = &level }
}

// NewServer builds the gateway from the watcher's current configuration.
func NewServer(watcher config.Watcher, logger *zap.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := watcher.GetCurrentConfig()
	s := &Server{
		configWatcher: watcher,
		logger:        logger,
		level:         o.level,
		metrics:       metrics.NewMetrics(),
		stopped:       make(chan struct{}),
	}

	s.keys = o.keys
	if s.keys == nil {
		store, err := keystore.New(cfg.Keystore.Path, logger.Named("keystore"))
		if err != nil {
			return nil, fmt.Errorf("open keystore: %w", err)
		}
		s.keys = store
	}

	var err error
	if o.providers != nil {
		s.providers, err = provider.NewManagerWithProviders(cfg, logger.Named("provider"), s.metrics.Registry(), o.providers)
	} else {
		s.providers, err = provider.NewManager(cfg, s.keys, logger.Named("provider"), s.metrics.Registry())
	}
	if err != nil {
		return nil, fmt.Errorf("create provider manager: %w", err)
	}

	svc, err := refine.NewService(s.providers, logger.Named("refine"))
	if err != nil {
		return nil, fmt.Errorf("create refine service: %w", err)
	}

	weatherClient, err := s.newWeatherClient(cfg)
	if err != nil {
		return nil, err
	}

	s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, s.metrics)
	if cfg.Queue.Enabled {
		s.queue = middleware.NewQueueMiddleware(middleware.QueueConfig{
			Concurrency:  cfg.Queue.Concurrency,
			InitialSize:  cfg.Queue.InitialSize,
			Metrics:      s.metrics,
			Logger:       logger.Named("queue"),
			StatePath:    cfg.Queue.StatePath,
			SaveInterval: cfg.Queue.SaveInterval,
		})
	}

	counter := validation.NewTokenCounter(cfg.LLM.TokenizerModel, logger)
	s.router = s.buildRouter(cfg,
		handlers.NewTextHandler(svc, counter, cfg.LLM.MaxInputTokens, logger),
		handlers.NewWeatherHandler(weatherClient, logger),
		handlers.NewKeysHandler(s.keys, logger),
		handlers.NewHealthHandler(s.providers, logger),
	)

	s.httpServer = &http.Server{
		Addr:           cfg.Server.Addr(),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return s, nil
}

func (s *Server) newWeatherClient(cfg *config.Config) (*weather.Client, error) {
	breaker, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "weather",
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
	}, s.logger.Named("weather"), s.metrics.Registry())
	if err != nil {
		return nil, fmt.Errorf("create weather circuit breaker: %w", err)
	}

	opts := []weather.Option{
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithHTTPClient(&http.Client{Timeout: cfg.Weather.Timeout}),
		weather.WithBreaker(breaker),
		weather.WithMetrics(s.metrics.WeatherRequests, s.metrics.WeatherCache),
	}

	cache, err := weather.NewCache(cfg.Weather.Cache)
	if err != nil {
		// The sidebar works without a cache.
		s.logger.Warn("Weather cache unavailable, continuing without it", zap.Error(err))
	} else if cache != nil {
		opts = append(opts, weather.WithCache(cache))
		if c, ok := cache.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}

	return weather.NewClient(s.keys, s.logger.Named("weather"), opts...), nil
}

// buildRouter wires the middleware in the order requests traverse it.
func (s *Server) buildRouter(cfg *config.Config, text *handlers.TextHandler, wx *handlers.WeatherHandler,
	keys *handlers.KeysHandler, health *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.PrometheusMetrics(s.metrics))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(r.Context()), "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.ValidationError, http.StatusMethodNotAllowed)
	})

	r.Get("/health", health.ServeHTTP)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimiter.Handler)
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		r.Group(func(r chi.Router) {
			if s.queue != nil {
				r.Use(s.queue.Handler)
			}
			r.Post("/refine", text.Refine)
			r.Post("/translate", text.Translate)
		})

		r.Get("/weather", wx.All)
		r.Get("/weather/{city}", wx.City)
		r.Get("/keys", keys.Get)
		r.Put("/keys", keys.Put)
	})

	return r
}

// Handler returns the routed middleware stack.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Providers returns the provider manager.
func (s *Server) Providers() *provider.Manager {
	return s.providers
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.configWatcher.GetCurrentConfig()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.watchConfig(ctx, s.configWatcher.Subscribe())
	s.providers.StartHealthChecks(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		s.cleanup(context.Background())
		return err
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.cleanup(shutdownCtx)
	if err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}

func (s *Server) cleanup(ctx context.Context) {
	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			s.logger.Warn("Queue did not drain", zap.Error(err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Stopped is closed once Serve has released its resources.
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

// watchConfig applies reloads that do not need a restart: log level, rate
// limit and queue size. Listener, provider and cache changes need a restart.
func (s *Server) watchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.applyConfig(cfg)
		}
	}
}

func (s *Server) applyConfig(cfg *config.Config) {
	if s.level != nil {
		lvl, err := cfg.Logging.ParseLevel()
		if err != nil {
			s.logger.Warn("Ignoring invalid log level", zap.Error(err))
		} else if lvl != s.level.Level() {
			s.level.SetLevel(lvl)
			s.logger.Info("Log level changed", zap.Stringer("level", lvl))
		}
	}

	s.rateLimiter.Update(cfg.RateLimit)

	if s.queue != nil && cfg.Queue.InitialSize > 0 && cfg.Queue.InitialSize != s.queue.GetMaxSize() {
		s.queue.SetMaxSize(cfg.Queue.InitialSize)
		s.logger.Info("Queue size changed", zap.Int64("size", cfg.Queue.InitialSize))
	}

	s.logger.Info("Configuration applied",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Object("logging", loggingFields(cfg.Logging)),
	)
}

type loggingFields config.LoggingConfig

func (l loggingFields) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("level", l.Level)
	enc.AddString("format", l.Format)
	return nil
}

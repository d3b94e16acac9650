package main

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/server/provider"
	"github.com/huulkit/huulkit/weather"
)

// app is the in-process wiring used by the one-shot commands and the TUI.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	keys    *keystore.Store
	text    *refine.Service
	weather *weather.Client
	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(configPath)
}

func openKeystore(logger *zap.Logger) (*keystore.Store, error) {
	path := keysPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Keystore.Path
	}
	return keystore.New(path, logger.Named("keystore"))
}

// newApp builds the services. quiet drops all logging, for the TUI which
// owns the terminal.
func newApp(quiet bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if !quiet {
		l, level, err := cfg.Logging.NewLogger()
		if err != nil {
			return nil, err
		}
		if !verbose {
			level.SetLevel(zap.WarnLevel)
		}
		logger = l
	}

	a := &app{cfg: cfg, logger: logger}

	path := keysPath
	if path == "" {
		path = cfg.Keystore.Path
	}
	a.keys, err = keystore.New(path, logger.Named("keystore"))
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	providers, err := provider.NewManager(cfg, a.keys, logger.Named("provider"), nil)
	if err != nil {
		return nil, fmt.Errorf("create provider manager: %w", err)
	}
	a.text, err = refine.NewService(providers, logger.Named("refine"))
	if err != nil {
		return nil, fmt.Errorf("create refine service: %w", err)
	}

	opts := []weather.Option{
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithHTTPClient(&http.Client{Timeout: cfg.Weather.Timeout}),
	}
	cache, err := weather.NewCache(cfg.Weather.Cache)
	if err != nil {
		logger.Warn("Weather cache unavailable, continuing without it", zap.Error(err))
	} else if cache != nil {
		opts = append(opts, weather.WithCache(cache))
		if c, ok := cache.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}
	a.weather = weather.NewClient(a.keys, logger.Named("weather"), opts...)

	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

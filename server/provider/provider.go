// Package provider manages the language model providers behind refinement
// and translation: the Gemini primary, optional gollm backups, one circuit
// breaker per provider, failover, request deduplication and health checks.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/server/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Generator produces a completion for a prompt. Any gollm.LLM satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// configurable is implemented by providers whose credentials can be missing.
type configurable interface {
	Configured() bool
}

// HealthStatus represents the current health state of a provider
type HealthStatus struct {
	Healthy          bool          `json:"healthy"`
	Configured       bool          `json:"configured"`
	LastCheck        time.Time     `json:"last_check"`
	ConsecutiveFails int           `json:"consecutive_fails"`
	Latency          time.Duration `json:"latency"`
	ErrorCount       int64         `json:"error_count"`
	RequestCount     int64         `json:"request_count"`
}

// Manager handles provider selection. It implements Generator itself so the
// refine service can use it directly.
type Manager struct {
	providers    map[string]Generator
	breakers     map[string]*circuitbreaker.CircuitBreaker
	preference   []string
	healthStates sync.Map // map[string]HealthStatus
	logger       *zap.Logger
	cfg          *config.Config
	registry     prometheus.Registerer
	mu           sync.RWMutex
	group        singleflight.Group

	healthCheckDuration  prometheus.Histogram
	healthCheckErrors    *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	requestsTotal        *prometheus.CounterVec
	deduplicatedRequests prometheus.Counter
	healthyProviders     *prometheus.GaugeVec
}

// NewManager builds the Gemini provider reading its key from keys, plus the
// configured backups.
func NewManager(cfg *config.Config, keys KeySource, logger *zap.Logger, registry prometheus.Registerer) (*Manager, error) {
	providers := map[string]Generator{
		GeminiName: NewGemini(keys, cfg.LLM.Model, cfg.LLM.Temperature),
	}

	for _, backup := range cfg.LLM.BackupProviders {
		backupLLM, err := gollm.NewLLM(
			gollm.SetProvider(backup.Provider),
			gollm.SetModel(backup.Model),
			gollm.SetAPIKey(backup.APIKey),
		)
		if err != nil {
			logger.Warn("Failed to initialize backup provider",
				zap.String("provider", backup.Provider),
				zap.Error(err))
			continue
		}
		providers[backup.Provider] = backupLLM
	}

	return NewManagerWithProviders(cfg, logger, registry, providers)
}

// NewManagerWithProviders creates a manager over the given providers.
func NewManagerWithProviders(cfg *config.Config, logger *zap.Logger, registry prometheus.Registerer, providers map[string]Generator) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		providers: make(map[string]Generator),
		breakers:  make(map[string]*circuitbreaker.CircuitBreaker),
		logger:    logger,
		cfg:       cfg,
		registry:  registry,
	}
	if err := m.initializeMetrics(registry); err != nil {
		return nil, err
	}
	if err := m.SetProviders(providers); err != nil {
		return nil, err
	}
	return m, nil
}

// SetProviders replaces the current providers, rebuilding breakers and
// health state.
func (m *Manager) SetProviders(providers map[string]Generator) error {
	m.mu.RLock()
	existing := m.breakers
	m.mu.RUnlock()

	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(providers))
	for name := range providers {
		if b, ok := existing[name]; ok {
			breakers[name] = b
			continue
		}
		b, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             "provider_" + name,
			MaxRequests:      m.cfg.CircuitBreaker.MaxRequests,
			Interval:         m.cfg.CircuitBreaker.Interval,
			Timeout:          m.cfg.CircuitBreaker.Timeout,
			FailureThreshold: m.cfg.CircuitBreaker.FailureThreshold,
			TestMode:         m.registry == nil,
			IsSuccessful:     ignoredFailure,
		}, m.logger.With(zap.String("provider", name)), m.registry)
		if err != nil {
			return fmt.Errorf("failed to create circuit breaker for %s: %w", name, err)
		}
		breakers[name] = b
	}

	m.mu.Lock()
	m.providers = providers
	m.breakers = breakers
	m.preference = preferenceOrder(m.cfg, providers)
	m.mu.Unlock()

	for name, p := range providers {
		m.UpdateHealthStatus(name, HealthStatus{
			Healthy:    true,
			Configured: isConfigured(p),
			LastCheck:  time.Now(),
		})
	}
	return nil
}

// preferenceOrder lists the configured preference first, then Gemini and the
// backups in config order, then anything else by name, so every provider is
// reachable.
func preferenceOrder(cfg *config.Config, providers map[string]Generator) []string {
	candidates := append([]string{}, cfg.ProviderPreference...)
	candidates = append(candidates, GeminiName)
	for _, backup := range cfg.LLM.BackupProviders {
		candidates = append(candidates, backup.Provider)
	}
	rest := make([]string, 0, len(providers))
	for name := range providers {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	candidates = append(candidates, rest...)

	seen := make(map[string]bool, len(providers))
	order := make([]string, 0, len(providers))
	for _, name := range candidates {
		if _, ok := providers[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	return order
}

func isConfigured(p Generator) bool {
	if c, ok := p.(configurable); ok {
		return c.Configured()
	}
	return true
}

// ignoredFailure reports errors that say nothing about provider health.
func ignoredFailure(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled)
}

// Configured reports whether at least one provider has credentials.
func (m *Manager) Configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.providers {
		if isConfigured(p) {
			return true
		}
	}
	return false
}

// Providers returns the provider names in failover order.
func (m *Manager) Providers() []string {
	return m.getProviderPreference()
}

// Breaker returns the circuit breaker of a provider.
func (m *Manager) Breaker(name string) (*circuitbreaker.CircuitBreaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[name]
	return b, ok
}

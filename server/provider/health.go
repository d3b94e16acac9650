package provider

import (
	"context"
	"time"

	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

var healthCheckPrompt = &gollm.Prompt{
	Messages: []gollm.PromptMessage{
		{Role: "system", Content: "Respond with 'ok' for health check."},
		{Role: "user", Content: "health check"},
	},
}

// StartHealthChecks probes every provider on the configured interval until
// ctx is done. It returns immediately when health checks are disabled.
func (m *Manager) StartHealthChecks(ctx context.Context) {
	hc := m.cfg.LLM.HealthCheck
	if hc == nil || !hc.Enabled {
		return
	}

	interval := hc.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.PerformHealthCheck(ctx)
			}
		}
	}()
}

// PerformHealthCheck checks all providers once. Providers without a key are
// marked unconfigured and not called.
func (m *Manager) PerformHealthCheck(ctx context.Context) {
	for _, name := range m.getProviderPreference() {
		provider, _, _ := m.getProviderResources(name)
		if provider == nil {
			continue
		}
		m.UpdateHealthStatus(name, m.CheckProviderHealth(ctx, name, provider))
	}
}

// CheckProviderHealth performs a health check on one provider
func (m *Manager) CheckProviderHealth(ctx context.Context, name string, provider Generator) HealthStatus {
	status := m.GetHealthStatus(name)
	status.LastCheck = time.Now()
	status.Configured = isConfigured(provider)
	if !status.Configured {
		// Nothing to probe; keep it selectable so a key saved later is used.
		status.Healthy = true
		return status
	}

	timeout := 10 * time.Second
	if hc := m.cfg.LLM.HealthCheck; hc != nil && hc.Timeout > 0 {
		timeout = hc.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	_, err := provider.Generate(ctx, healthCheckPrompt)
	status.Latency = time.Since(start)
	status.RequestCount++
	m.healthCheckDuration.Observe(status.Latency.Seconds())

	if err != nil {
		status.Healthy = false
		status.ConsecutiveFails++
		status.ErrorCount++
		m.healthCheckErrors.WithLabelValues(name).Inc()
		m.logger.Warn("Provider health check failed",
			zap.String("provider", name),
			zap.Error(err),
			zap.Duration("latency", status.Latency),
		)
		return status
	}

	status.Healthy = true
	status.ConsecutiveFails = 0
	return status
}

// GetHealthStatus returns the health status for a provider
func (m *Manager) GetHealthStatus(name string) HealthStatus {
	if val, ok := m.healthStates.Load(name); ok {
		return val.(HealthStatus)
	}
	return HealthStatus{}
}

// HealthStatuses returns the status of every provider, keyed by name.
func (m *Manager) HealthStatuses() map[string]HealthStatus {
	out := make(map[string]HealthStatus)
	for _, name := range m.getProviderPreference() {
		provider, _, status := m.getProviderResources(name)
		if provider != nil {
			status.Configured = isConfigured(provider)
		}
		out[name] = status
	}
	return out
}

// UpdateHealthStatus updates the health status for a provider
func (m *Manager) UpdateHealthStatus(name string, status HealthStatus) {
	m.healthStates.Store(name, status)
	if status.Healthy {
		m.healthyProviders.WithLabelValues(name).Set(1)
	} else {
		m.healthyProviders.WithLabelValues(name).Set(0)
	}
}

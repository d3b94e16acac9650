package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/huulkit/huulkit/server/circuitbreaker"
	"github.com/sony/gobreaker"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"go.uber.org/zap"
)

// result represents the outcome of one provider attempt
type result struct {
	text   string
	err    error
	status HealthStatus
	name   string
}

// Generate runs the prompt on the first usable provider. Identical prompts
// in flight at the same time share one upstream call. The shared call is
// detached from any single caller, so a caller that gives up only stops
// waiting.
func (m *Manager) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	if prompt == nil || len(prompt.Messages) == 0 {
		return "", errors.New("prompt has no messages")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := m.generateRequestKey(prompt)
	m.logger.Debug("Starting Generate", zap.String("key", key[:12]))

	ch := m.group.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := m.flightContext(ctx)
		defer cancel()

		r, err := m.executeWithFailover(flightCtx, prompt, opts)
		if r != nil && r.name != "" {
			m.UpdateHealthStatus(r.name, r.status)
		}
		return r, err
	})

	select {
	case <-ctx.Done():
		m.logger.Debug("Caller stopped waiting for Generate", zap.Error(ctx.Err()))
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			m.deduplicatedRequests.Inc()
		}
		if res.Err != nil {
			m.logger.Debug("Generate failed", zap.Error(res.Err))
			return "", res.Err
		}
		return res.Val.(*result).text, nil
	}
}

// flightContext keeps the values of ctx but not its cancellation, bounded
// by the request timeout.
func (m *Manager) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout := m.cfg.Server.RequestTimeout; timeout > 0 {
		return context.WithTimeout(detached, timeout)
	}
	return context.WithCancel(detached)
}

// executeWithFailover tries providers in preference order, healthy ones
// first. A provider that failed its last health check is still tried after
// them, since one bad check should not take the only model offline. A
// failure with the breaker still closed is returned right away; once the
// breaker opens, later requests move on to the next provider.
func (m *Manager) executeWithFailover(ctx context.Context, prompt *gollm.Prompt, opts []llm.GenerateOption) (*result, error) {
	preference := m.getProviderPreference()
	if len(preference) == 0 {
		return &result{err: errors.New("no providers configured")}, errors.New("no providers configured")
	}

	var (
		lastResult    *result
		notConfigured bool
	)

	order := m.attemptOrder(preference)
	for i, name := range order {
		provider, breaker, status := m.getProviderResources(name)
		if provider == nil || breaker == nil {
			continue
		}
		if !isConfigured(provider) {
			notConfigured = true
			continue
		}

		current := m.executeOperation(ctx, prompt, opts, provider, breaker, status, name)
		lastResult = current
		if current.err == nil {
			return current, nil
		}

		last := i == len(order)-1
		switch {
		case errors.Is(current.err, ErrNotConfigured):
			notConfigured = true
			continue
		case errors.Is(current.err, circuitbreaker.ErrOpen), breaker.State() == gobreaker.StateOpen:
			if last {
				return current, current.err
			}
			continue
		default:
			return current, current.err
		}
	}

	if lastResult != nil {
		return lastResult, lastResult.err
	}
	if notConfigured {
		return &result{err: ErrNotConfigured}, ErrNotConfigured
	}
	return &result{err: ErrNoHealthyProvider}, ErrNoHealthyProvider
}

// attemptOrder puts healthy providers ahead of unhealthy ones, keeping the
// preference order within each group.
func (m *Manager) attemptOrder(preference []string) []string {
	order := make([]string, 0, len(preference))
	var unhealthy []string
	for _, name := range preference {
		if m.GetHealthStatus(name).Healthy {
			order = append(order, name)
		} else {
			unhealthy = append(unhealthy, name)
		}
	}
	return append(order, unhealthy...)
}

// executeOperation handles a single attempt on one provider.
func (m *Manager) executeOperation(
	ctx context.Context,
	prompt *gollm.Prompt,
	opts []llm.GenerateOption,
	provider Generator,
	breaker *circuitbreaker.CircuitBreaker,
	status HealthStatus,
	name string) *result {

	start := time.Now()

	out, err := breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return provider.Generate(ctx, prompt, opts...)
	})

	duration := time.Since(start)
	m.requestLatency.WithLabelValues(name).Observe(duration.Seconds())
	counts := breaker.Counts()

	status.LastCheck = time.Now()
	status.Latency = duration
	status.RequestCount++
	status.Configured = isConfigured(provider)

	if err != nil {
		m.requestsTotal.WithLabelValues(name, outcome(err)).Inc()
		m.logger.Debug("operation failed",
			zap.String("provider", name),
			zap.Error(err),
			zap.Duration("duration", duration),
			zap.String("breaker_state", breaker.State().String()),
			zap.Uint32("consecutive_failures", counts.ConsecutiveFailures))

		if !ignoredFailure(err) && !errors.Is(err, circuitbreaker.ErrOpen) {
			status.ErrorCount++
			status.ConsecutiveFails = int(counts.ConsecutiveFailures)
		}
		return &result{err: err, status: status, name: name}
	}

	m.requestsTotal.WithLabelValues(name, "success").Inc()
	status.Healthy = true
	status.ConsecutiveFails = 0
	text, _ := out.(string)
	return &result{text: text, status: status, name: name}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "breaker_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// generateRequestKey hashes every message so that only truly identical
// prompts are collapsed.
func (m *Manager) generateRequestKey(prompt *gollm.Prompt) string {
	h := sha256.New()
	for _, msg := range prompt.Messages {
		fmt.Fprintf(h, "%s\x00%s\x00", msg.Role, msg.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// getProviderPreference safely retrieves the current provider order
func (m *Manager) getProviderPreference() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preference := make([]string, len(m.preference))
	copy(preference, m.preference)
	return preference
}

// getProviderResources safely retrieves provider-related resources
func (m *Manager) getProviderResources(name string) (Generator, *circuitbreaker.CircuitBreaker, HealthStatus) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provider, exists := m.providers[name]
	if !exists {
		return nil, nil, HealthStatus{}
	}
	return provider, m.breakers[name], m.GetHealthStatus(name)
}

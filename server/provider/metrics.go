package provider

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// initializeMetrics sets up Prometheus metrics. A nil registry leaves them
// unregistered, which tests rely on.
func (m *Manager) initializeMetrics(registry prometheus.Registerer) error {
	m.healthCheckDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "huulkit_provider_health_check_duration_seconds",
		Help: "Duration of provider health checks",
	})

	m.healthCheckErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huulkit_provider_health_check_errors_total",
		Help: "Number of health check errors by provider",
	}, []string{"provider"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "huulkit_provider_request_latency_seconds",
		Help:    "Latency of provider requests",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider"})

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huulkit_provider_requests_total",
		Help: "Provider requests by provider and outcome",
	}, []string{"provider", "outcome"})

	m.deduplicatedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "huulkit_deduplicated_requests_total",
		Help: "Number of deduplicated requests",
	})

	m.healthyProviders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "huulkit_healthy_providers",
		Help: "Whether a provider is healthy (1) or not (0)",
	}, []string{"provider"})

	if registry == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		m.healthCheckDuration,
		m.healthCheckErrors,
		m.requestLatency,
		m.requestsTotal,
		m.deduplicatedRequests,
		m.healthyProviders,
	} {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register provider metrics: %w", err)
		}
	}
	return nil
}

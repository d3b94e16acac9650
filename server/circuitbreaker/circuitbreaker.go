// Package circuitbreaker wraps sony/gobreaker with Prometheus metrics and
// logging. Huulkit keeps one breaker per language model provider and one for
// the weather API.
package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Closed-state period after which counts reset
	Timeout          time.Duration // Open-state period before trying half-open
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	TestMode         bool          // Skip metric registration in test mode

	// IsSuccessful reports errors that should not count as failures, e.g. a
	// missing API key or a cancelled request. Nil counts every error.
	IsSuccessful func(err error) bool
}

// CircuitBreaker guards calls to one upstream.
type CircuitBreaker struct {
	name         string
	cb           *gobreaker.CircuitBreaker
	logger       *zap.Logger
	isSuccessful func(error) bool

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a breaker and registers its metrics on registry
// unless TestMode is set or registry is nil.
func NewCircuitBreaker(config Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if config.Name == "" {
		return nil, errors.New("circuit breaker name is required")
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CircuitBreaker{
		name:         config.Name,
		logger:       logger,
		isSuccessful: config.IsSuccessful,
	}

	labels := prometheus.Labels{"name": config.Name}
	c.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "huulkit_circuit_breaker_state",
		Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	})
	c.failuresCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "huulkit_circuit_breaker_failures_total",
		Help:        "Total number of failures recorded by the circuit breaker",
		ConstLabels: labels,
	})
	c.tripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "huulkit_circuit_breaker_trips_total",
		Help:        "Total number of times the circuit breaker has tripped",
		ConstLabels: labels,
	})

	if !config.TestMode && registry != nil {
		for _, col := range []prometheus.Collector{c.stateGauge, c.failuresCount, c.tripsTotal} {
			if err := registry.Register(col); err != nil {
				return nil, fmt.Errorf("register circuit breaker metrics for %s: %w", config.Name, err)
			}
		}
	}

	threshold := config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: c.onStateChange,
	}
	if config.IsSuccessful != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || config.IsSuccessful(err)
		}
	}
	c.cb = gobreaker.NewCircuitBreaker(settings)

	return c, nil
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
	}
	c.logger.Warn("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs req if the breaker allows it. ErrOpen is returned while the
// breaker is open or the half-open budget is used up.
func (c *CircuitBreaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(req)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrOpen, c.name)
	}
	if c.isSuccessful == nil || !c.isSuccessful(err) {
		c.failuresCount.Inc()
	}
	return result, err
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

// State returns the current state of the circuit breaker
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the request counts of the current generation.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

// Package config provides configuration management for the Huulkit service.
// It covers the HTTP gateway, the language model providers, the weather API,
// logging and the runtime protections (circuit breakers, rate limit, queue).
//
// API keys are deliberately not part of this file: they are user data and
// live in the keystore (see package keystore).
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server             ServerConfig         `yaml:"server"`
	LLM                LLMConfig            `yaml:"llm"`
	Weather            WeatherConfig        `yaml:"weather"`
	Keystore           KeystoreConfig       `yaml:"keystore"`
	Logging            LoggingConfig        `yaml:"logging"`
	ProviderPreference []string             `yaml:"provider_preference"` // Order of provider preference
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit          RateLimitConfig      `yaml:"rate_limit"`
	Queue              QueueConfig          `yaml:"queue"`
}

// ServerConfig holds configuration for the local HTTP gateway.
type ServerConfig struct {
	// Host is the interface to bind (default: 127.0.0.1, the gateway serves a local front end)
	Host string `yaml:"host"`

	// Port specifies the HTTP server port (default: 8765)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// It must exceed RequestTimeout (default: 75s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RequestTimeout bounds a single API call including the model round trip (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes controls the maximum size of request headers (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests on shutdown (default: 10s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins lists the front-end origins allowed by CORS. Empty allows any
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	// Model is the Gemini model used for refinement and translation
	Model string `yaml:"model"`

	// Temperature passed to the model
	Temperature float64 `yaml:"temperature"`

	// MaxInputTokens caps the size of the text a user may submit
	MaxInputTokens int `yaml:"max_input_tokens"`

	// TokenizerModel selects the tiktoken encoding used to estimate input size
	TokenizerModel string `yaml:"tokenizer_model"`

	// BackupProviders defines failover providers reached through gollm (optional)
	BackupProviders []BackupProvider `yaml:"backup_providers,omitempty"`

	// HealthCheck defines provider health monitoring settings (optional)
	HealthCheck *ProviderHealthCheck `yaml:"health_check,omitempty"`
}

// BackupProvider defines a fallback LLM provider.
type BackupProvider struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// ProviderHealthCheck defines health check settings
type ProviderHealthCheck struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WeatherConfig configures the weather sidebar.
type WeatherConfig struct {
	// BaseURL of the current-conditions endpoint
	BaseURL string `yaml:"base_url"`

	// Timeout for a single weather call
	Timeout time.Duration `yaml:"timeout"`

	// Cache configuration (optional)
	Cache *CacheConfig `yaml:"cache,omitempty"`
}

// CacheConfig defines caching of weather responses.
type CacheConfig struct {
	// Enable turns caching on/off (default: true)
	Enable bool `yaml:"enable"`

	// Type specifies the backend:
	// - "memory": In-memory cache (cleared on restart)
	// - "redis": Redis-backed cache shared between processes
	Type string `yaml:"type"`

	// TTL specifies how long to keep a city's conditions (default: 10m)
	TTL time.Duration `yaml:"ttl"`

	// Redis configuration (only used if Type is "redis")
	Redis *RedisCacheConfig `yaml:"redis,omitempty"`
}

// RedisCacheConfig holds Redis-specific cache configuration.
type RedisCacheConfig struct {
	// URL in redis:// form; takes precedence over Address when set
	URL string `yaml:"url"`

	// Address is the Redis server address (e.g., "localhost:6379")
	Address string `yaml:"address"`

	// Password for Redis authentication (optional)
	Password string `yaml:"password"`

	// DB is the Redis database number to use
	DB int `yaml:"db"`
}

// KeystoreConfig locates the API key file.
type KeystoreConfig struct {
	// Path of the JSON key file. Empty means $HOME/.huulkit/config.json
	Path string `yaml:"path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// CircuitBreakerConfig is shared by the provider and weather breakers.
type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// RateLimitConfig configures the per-client limiter on /v1 routes.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Requests allowed per Window, also used as the burst size
	Requests int `yaml:"requests"`

	Window time.Duration `yaml:"window"`
}

// QueueConfig defines the bounded queue in front of the model routes.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// Concurrency is the number of model calls served at once; others wait
	Concurrency int `yaml:"concurrency"`

	// InitialSize is the starting maximum size of the queue
	InitialSize int64 `yaml:"initial_size"`

	// StatePath is the file path where queue state is persisted
	// If empty, persistence is disabled
	StatePath string `yaml:"state_path"`

	// SaveInterval is how often the queue state is saved
	SaveInterval time.Duration `yaml:"save_interval"`
}

// DefaultConfig returns the configuration used when no file is given and
// the base that a YAML file is decoded onto.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8765,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    75 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},

		LLM: LLMConfig{
			Model:          "gemini-2.0-flash",
			Temperature:    1.0,
			MaxInputTokens: 8192,
			TokenizerModel: "gpt-4",
			HealthCheck: &ProviderHealthCheck{
				Enabled:  false,
				Interval: 5 * time.Minute,
				Timeout:  10 * time.Second,
			},
		},

		Weather: WeatherConfig{
			BaseURL: "http://api.weatherapi.com/v1/current.json",
			Timeout: 10 * time.Second,
			Cache: &CacheConfig{
				Enable: true,
				Type:   "memory",
				TTL:    10 * time.Minute,
			},
		},

		ProviderPreference: []string{"gemini"},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},

		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		Queue: QueueConfig{
			Enabled:      true,
			Concurrency:  4,
			InitialSize:  16,
			SaveInterval: 30 * time.Second,
		},
	}
}

// Addr returns the listen address of the gateway.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. An unset
// variable without default expands to the empty string.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("unterminated variable reference")
	}

	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})

	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive: %v", c.Server.RequestTimeout)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Server.RequestTimeout {
		return fmt.Errorf("write timeout (%v) must exceed request timeout (%v)", c.Server.WriteTimeout, c.Server.RequestTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature out of range [0,2]: %v", c.LLM.Temperature)
	}
	if c.LLM.MaxInputTokens < 0 {
		return fmt.Errorf("negative max input tokens: %d", c.LLM.MaxInputTokens)
	}
	for i, b := range c.LLM.BackupProviders {
		if b.Provider == "" || b.Model == "" {
			return fmt.Errorf("backup provider %d needs provider and model", i)
		}
	}
	if len(c.ProviderPreference) == 0 {
		return fmt.Errorf("empty provider preference")
	}

	if c.Weather.BaseURL == "" {
		return fmt.Errorf("empty weather base url")
	}
	if cache := c.Weather.Cache; cache != nil && cache.Enable {
		switch cache.Type {
		case "memory":
		case "redis":
			if cache.Redis == nil || (cache.Redis.URL == "" && cache.Redis.Address == "") {
				return fmt.Errorf("redis cache requires url or address")
			}
		default:
			return fmt.Errorf("invalid cache type: %s", cache.Type)
		}
		if cache.TTL <= 0 {
			return fmt.Errorf("cache ttl must be positive: %v", cache.TTL)
		}
	}

	if c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs positive requests and window")
	}

	if c.Queue.Enabled && c.Queue.InitialSize <= 0 {
		return fmt.Errorf("queue initial size must be positive: %d", c.Queue.InitialSize)
	}
	if c.Queue.Enabled && c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue concurrency must be positive: %d", c.Queue.Concurrency)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

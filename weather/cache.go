package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huulkit/huulkit/config"
	"github.com/redis/go-redis/v9"
)

const keyConditions = "huulkit:weather:%s"

// Cache stores recent conditions per city and API key. Keys are opaque
// to the cache.
type Cache interface {
	Get(ctx context.Context, key string) (Info, bool, error)
	Set(ctx context.Context, key string, info Info) error
}

// NewCache builds the cache described by cfg. A nil or disabled config
// returns a nil Cache, which the client treats as "no caching".
func NewCache(cfg *config.CacheConfig) (Cache, error) {
	if cfg == nil || !cfg.Enable {
		return nil, nil
	}
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(cfg.TTL), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis cache requires redis settings")
		}
		rc, err := NewRedisCacheFromConfig(cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("invalid cache type: %s", cfg.Type)
	}
}

type memoryEntry struct {
	info    Info
	expires time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Info, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return Info{}, false, nil
	}
	return e.info, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, info Info) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{info: info, expires: c.now().Add(c.ttl)}
	return nil
}

// RedisCache shares conditions between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromConfig connects to Redis and checks the connection.
func NewRedisCacheFromConfig(cfg *config.RedisCacheConfig, ttl time.Duration) (*RedisCache, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCache(client, ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Info, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(keyConditions, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, false, fmt.Errorf("decode cached conditions: %w", err)
	}
	return info, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, info Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, fmt.Sprintf(keyConditions, key), data, c.ttl).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

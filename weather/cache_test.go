package weather

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/huulkit/huulkit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "London")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Info{City: "London", Temperature: "9°"}
	require.NoError(t, c.Set(ctx, "London", want))

	got, ok, err := c.Get(ctx, "London")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "London")
	assert.False(t, ok)
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCache(&config.CacheConfig{Enable: false, Type: "memory"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCache(&config.CacheConfig{Enable: true, Type: "memory", TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = NewCache(&config.CacheConfig{Enable: true, Type: "file"})
	assert.Error(t, err)

	_, err = NewCache(&config.CacheConfig{Enable: true, Type: "redis"})
	assert.Error(t, err)
}

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheFromConfig(&config.RedisCacheConfig{Address: mr.Addr()}, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "London:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Info{City: "London", Temperature: "9°", IconURL: "https://x/y.png", LocalTime: "14:05"}
	require.NoError(t, c.Set(ctx, "London:abc", want))

	assert.True(t, mr.Exists("huulkit:weather:London:abc"))
	assert.Equal(t, time.Minute, mr.TTL("huulkit:weather:London:abc"))

	got, ok, err := c.Get(ctx, "London:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(time.Minute)
	_, ok, err = c.Get(ctx, "London:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheCorruptValue(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	require.NoError(t, mr.Set("huulkit:weather:Hanoi:abc", "{not json"))

	_, ok, err := c.Get(context.Background(), "Hanoi:abc")
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode cached conditions")
}

func TestRedisCacheFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewCache(&config.CacheConfig{
		Enable: true,
		Type:   "redis",
		TTL:    time.Minute,
		Redis:  &config.RedisCacheConfig{URL: "redis://" + mr.Addr() + "/0"},
	})
	require.NoError(t, err)
	require.IsType(t, &RedisCache{}, c)
	require.NoError(t, c.(*RedisCache).Close())

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisCacheFromConfig(&config.RedisCacheConfig{Address: addr}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestClientFallsBackWhenCacheFails(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	mr.SetError("LOADING")

	var hits atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(londonJSON))
	})
	client := NewClient(staticKey("k"), zaptest.NewLogger(t), WithBaseURL(srv.URL), WithCache(c))

	info, err := client.Info(context.Background(), Cities[0])
	require.NoError(t, err)
	assert.Equal(t, "London", info.City)
	assert.Equal(t, int32(1), hits.Load())
}

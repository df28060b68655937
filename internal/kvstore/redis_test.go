package kvstore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
)

func newMiniredisStore(t *testing.T, prefix string) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStore(client, prefix)
}

func TestRedisStore_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, store := newMiniredisStore(t, "bifrost")

	t.Run("missing key maps to ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "config")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get under prefix", func(t *testing.T) {
		// Arrange
		doc := []byte(`{"/":{"segment":80,"version_a":"/index.html","version_b":"/index_b.html"}}`)

		// Act
		require.NoError(t, store.Set(ctx, "config", doc))
		got, err := store.Get(ctx, "config")

		// Assert
		require.NoError(t, err)
		assert.JSONEq(t, string(doc), string(got))

		raw, err := mr.Get("bifrost:config")
		require.NoError(t, err)
		assert.Equal(t, string(doc), raw)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
		assert.NoError(t, NewHealthChecker(store, "redis").Check(ctx))
	})
}

func TestRedisStore_NoPrefix(t *testing.T) {
	t.Parallel()

	mr, store := newMiniredisStore(t, "")
	require.NoError(t, mr.Set("config", "raw"))

	got, err := store.Get(context.Background(), "config")

	require.NoError(t, err)
	assert.Equal(t, "raw", string(got))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	t.Parallel()

	mr, store := newMiniredisStore(t, "bifrost")
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := store.Get(ctx, "config")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	checker := NewHealthChecker(store, "")
	assert.Equal(t, "redis", checker.Name())
	assert.Error(t, checker.Check(ctx))
}

func TestHealthChecker_NilStore(t *testing.T) {
	t.Parallel()

	err := NewHealthChecker(nil, "valkey").Check(context.Background())
	assert.ErrorContains(t, err, "valkey store is nil")
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewRedisClient(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)
		cfg := &config.RedisConfig{
			Host:           host,
			Port:           port,
			PoolSize:       2,
			DialTimeout:    time.Second,
			ReadTimeout:    time.Second,
			PingMaxRetries: 1,
			PingBackoff:    time.Millisecond,
			KeyPrefix:      "bifrost",
		}

		store, err := Open(context.Background(), cfg, DriverRedis)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Set(context.Background(), "config", []byte("{}")))
		assert.True(t, mr.Exists("bifrost:config"))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)
		mr.Close()

		cfg := &config.RedisConfig{
			Host:           host,
			Port:           port,
			PoolSize:       1,
			DialTimeout:    100 * time.Millisecond,
			ReadTimeout:    100 * time.Millisecond,
			PingMaxRetries: 2,
			PingBackoff:    time.Millisecond,
		}

		_, err = NewRedisClient(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), &config.RedisConfig{}, "memcached")
	assert.ErrorContains(t, err, "unknown kv driver")
}

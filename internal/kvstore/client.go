package kvstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/logger"
)

// Supported drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Open connects to the configured store with the requested driver and wraps it.
func Open(ctx context.Context, cfg *config.RedisConfig, driver string) (Store, error) {
	switch driver {
	case DriverRedis, "":
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil
	case DriverValkey:
		client, err := NewValkeyClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewValkeyStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown kv driver %q", driver)
	}
}

// NewRedisClient initializes a go-redis client using the provided configuration.
// It handles connection pooling, TLS, and initial connectivity checks with retries.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.Options{Addr: cfg.Address()}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.URL == "" {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	if err := pingWithRetry(ctx, "redis", cfg, func(pctx context.Context) error {
		return client.Ping(pctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewValkeyClient initializes a valkey-go client with the same retry policy as NewRedisClient.
func NewValkeyClient(ctx context.Context, cfg *config.RedisConfig) (valkey.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := valkey.ClientOption{
		InitAddress: []string{cfg.Address()},
		SelectDB:    cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := valkey.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.ConnWriteTimeout = cfg.WriteTimeout
	opts.DisableCache = true
	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	if err := pingWithRetry(ctx, "valkey", cfg, func(pctx context.Context) error {
		return client.Do(pctx, client.B().Ping().Build()).Error()
	}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// pingWithRetry pings until success or PingMaxRetries attempts, doubling the
// wait from PingBackoff between attempts.
func pingWithRetry(ctx context.Context, name string, cfg *config.RedisConfig, ping func(context.Context) error) error {
	log := logger.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.PingBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		log.Info(name+" ping attempt", slog.Int("attempt", attempt), slog.Int("max_retries", cfg.PingMaxRetries))

		pctx, cancel := ctx, context.CancelFunc(func() {})
		if timeout := cfg.DialTimeout + cfg.ReadTimeout; timeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
		if err := ping(pctx); err != nil {
			log.Warn(name+" ping failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return struct{}{}, err
		}
		log.Info(name+" ping successful", slog.Int("attempt", attempt))
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(max(cfg.PingMaxRetries, 1))))
	if err != nil {
		return fmt.Errorf("failed to connect to %s after %d retries: %w", name, attempt, err)
	}
	return nil
}

package testsupport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/kvstore"
)

// RedisContainer holds references to the ephemeral Redis instance.
type RedisContainer struct {
	Container testcontainers.Container
	// Store is the application KV store connected to the container.
	Store kvstore.Store
	// Config is the connection config pointing at the container.
	Config *config.RedisConfig
}

// Terminate cleans up the container and closes the client.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Store.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer spins up a Redis 7-alpine container and connects the
// given driver (kvstore.DriverRedis or kvstore.DriverValkey) to it.
func StartRedisContainer(ctx context.Context, driver string) (*RedisContainer, error) {
	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := redisContainer.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("unexpected redis endpoint %q: %w", endpoint, err)
	}

	testCfg := &config.RedisConfig{
		Host:           host,
		Port:           port,
		PoolSize:       5,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		KeyPrefix:      "bifrost_test",
		PingMaxRetries: 5,
		PingBackoff:    500 * time.Millisecond,
	}
	store, err := kvstore.Open(ctx, testCfg, driver)
	if err != nil {
		_ = redisContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create %s client: %w", driver, err)
	}

	return &RedisContainer{
		Container: redisContainer,
		Store:     store,
		Config:    testCfg,
	}, nil
}

// Package database provides the PostgreSQL connection factory.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/logger"
)

const defaultPingTimeout = 5 * time.Second

// NewPostgresPool initializes a PostgreSQL connection pool from cfg and pings it,
// retrying with exponential backoff up to cfg.PingMaxRetries times.
// The caller owns the returned pool.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// MaxConns prevents the app from starving the DB; MinConns keeps connections warm.
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	log := logger.FromContext(ctx)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.PingBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, max(cfg.ConnectTimeout, defaultPingTimeout))
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			log.Warn("postgres ping failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(max(cfg.PingMaxRetries, 1))))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}

	log.Info("connected to postgres", slog.Int("attempts", attempt))
	return pool, nil
}

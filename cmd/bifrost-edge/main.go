// Package main runs the Bifrost edge: a reverse proxy that buckets visitors
// into experiment variants, rewrites the request path and persists the
// visitor token as a cookie.
//
// It is the composition root wiring the configured rule provider, the rule
// cache and the coordinator, and it owns the server lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafaeljc/bifrost/internal/awsclient"
	"github.com/rafaeljc/bifrost/internal/cache"
	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/database"
	"github.com/rafaeljc/bifrost/internal/edge"
	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/kvstore"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/provider"
	"github.com/rafaeljc/bifrost/internal/store"
)

const cacheMetricsInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLog := logger.New(&cfg.App)
	slog.SetDefault(appLog)
	cfg.LogConfig(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Rule provider and its backing store
	// -------------------------------------------------------------------------
	deps := provider.Deps{
		Logger: appLog,
		HTTP:   &http.Client{Timeout: cfg.Provider.Timeout},
	}
	var checkers []observability.Checker

	switch cfg.Provider.Kind {
	case config.ProviderKV:
		kv, err := kvstore.Open(ctx, &cfg.Redis, cfg.Provider.KVDriver)
		if err != nil {
			return fmt.Errorf("failed to connect to kv store: %w", err)
		}
		defer kv.Close()
		deps.KV = kv
		checkers = append(checkers, kvstore.NewHealthChecker(kv, cfg.Provider.KVDriver))

	case config.ProviderPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		deps.Rules = store.NewPostgresStore(pool)
		checkers = append(checkers, database.NewHealthChecker(pool))

	case config.ProviderBlob, config.ProviderTable:
		clients, err := awsclient.New(ctx, &cfg.AWS, awsclient.Options{
			S3:       cfg.Provider.Kind == config.ProviderBlob,
			SSM:      cfg.Provider.Kind == config.ProviderBlob && cfg.Provider.BlobBucket == "",
			DynamoDB: cfg.Provider.Kind == config.ProviderTable,
		})
		if err != nil {
			return fmt.Errorf("failed to load aws clients: %w", err)
		}
		// Only assign non-nil clients; a typed nil would defeat the Build checks.
		if clients.S3 != nil {
			deps.S3 = clients.S3
		}
		if clients.SSM != nil {
			deps.SSM = clients.SSM
		}
		if clients.DynamoDB != nil {
			deps.DynamoDB = clients.DynamoDB
		}
	}

	rulesProvider, err := provider.Build(&cfg.Provider, deps)
	if err != nil {
		return fmt.Errorf("failed to build %s provider: %w", cfg.Provider.Kind, err)
	}
	checkers = append(checkers, provider.NewHealthChecker(rulesProvider, cfg.Edge.Paths[0]))

	// -------------------------------------------------------------------------
	// 3. Coordinator
	// -------------------------------------------------------------------------
	rules, err := cache.New(cache.Options{
		Capacity: cfg.Cache.Capacity,
		Policy:   cache.StalePolicy(cfg.Cache.StalePolicy),
		MaxStale: cfg.Cache.MaxStale,
	})
	if err != nil {
		return err
	}
	defer rules.Close()
	go rules.RunMetricsCollector(ctx, cacheMetricsInterval)

	resolverOpts := []experiment.ResolverOption{experiment.WithCookieName(cfg.Edge.CookieName)}
	if cfg.Edge.HashHeader != "" {
		resolverOpts = append(resolverOpts, experiment.WithHashHeader(cfg.Edge.HashHeader))
	}
	resolver := experiment.NewResolver(experiment.NewRandomSource(), resolverOpts...)

	coord := edge.NewCoordinator(resolver, rules, rulesProvider, edge.Options{
		Paths: cfg.Edge.Paths,
		TTL:   cfg.Cache.TTL,
		Cookie: edge.CookieOptions{
			Name:     cfg.Edge.CookieName,
			MaxAge:   cfg.Edge.CookieMaxAge,
			Secure:   cfg.Edge.CookieSecure,
			HTTPOnly: cfg.Edge.CookieHTTPOnly,
		},
		CarrierHeader: cfg.Edge.CarrierHeader,
	})

	origin, err := url.Parse(cfg.Edge.OriginURL)
	if err != nil {
		return fmt.Errorf("invalid origin url: %w", err)
	}
	proxy := edge.NewProxy(coord, origin, edge.NewOriginTransport(cfg.Edge.OriginTimeout))

	// -------------------------------------------------------------------------
	// 4. Servers
	// -------------------------------------------------------------------------
	obsServer := observability.NewServer(appLog, &cfg.Observability, checkers...)
	obsServer.Start()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Edge.Host, cfg.Edge.Port),
		Handler:           edge.NewRouter(proxy, appLog),
		ReadTimeout:       cfg.Edge.ReadTimeout,
		WriteTimeout:      cfg.Edge.WriteTimeout,
		ReadHeaderTimeout: cfg.Edge.ReadHeaderTimeout,
		IdleTimeout:       cfg.Edge.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		appLog.Info("edge listening",
			slog.String("addr", srv.Addr),
			slog.String("origin", origin.String()),
			slog.String("provider", rulesProvider.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("edge server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		appLog.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("edge shutdown failed: %w", err)
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("observability shutdown failed", slog.Any("error", err))
	}

	appLog.Info("edge exited successfully")
	return nil
}

// Package main runs the Bifrost control plane: the REST API over the
// segmentation rule table.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/controlapi"
	"github.com/rafaeljc/bifrost/internal/database"
	"github.com/rafaeljc/bifrost/internal/kvstore"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/publish"
	"github.com/rafaeljc/bifrost/internal/store"
)

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
	if err := cfg.Control.Validate(cfg.App.Environment); err != nil {
		return fmt.Errorf("control plane config validation failed: %w", err)
	}
	if !cfg.Database.IsConfigured() {
		return fmt.Errorf("control plane requires database configuration")
	}

	appLog := logger.New(&cfg.App)
	slog.SetDefault(appLog)
	cfg.LogConfig(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Infrastructure
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	checkers := []observability.Checker{database.NewHealthChecker(pool)}

	// Without a KV store, changes reach the edge through the syncer only.
	var publisher publish.Publisher
	if cfg.Redis.IsConfigured() {
		kv, err := kvstore.Open(ctx, &cfg.Redis, cfg.Provider.KVDriver)
		if err != nil {
			return fmt.Errorf("failed to connect to kv store: %w", err)
		}
		defer kv.Close()
		publisher = publish.NewKV(kv, cfg.Provider.KVKey)
		checkers = append(checkers, kvstore.NewHealthChecker(kv, cfg.Provider.KVDriver))
	}

	// -------------------------------------------------------------------------
	// 3. API
	// -------------------------------------------------------------------------
	skipAuth := cfg.Control.APIKeyHash == ""
	if skipAuth {
		appLog.Warn("API key hash not set, control plane authentication is DISABLED")
	}

	api := controlapi.NewAPI(store.NewPostgresStore(pool), publisher, controlapi.Options{
		APIKeyHash:     cfg.Control.APIKeyHash,
		SkipAuth:       skipAuth,
		PublishTimeout: cfg.Control.PublishTimeout,
		Retry: publish.RetryPolicy{
			MaxRetries: cfg.Syncer.MaxRetries,
			BaseDelay:  cfg.Syncer.BaseRetryDelay,
		},
		Logger: appLog,
	})

	obsServer := observability.NewServer(appLog, &cfg.Observability, checkers...)
	obsServer.Start()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Control.Host, cfg.Control.Port),
		Handler:           api.Router,
		ReadTimeout:       cfg.Control.ReadTimeout,
		WriteTimeout:      cfg.Control.WriteTimeout,
		ReadHeaderTimeout: cfg.Control.ReadHeaderTimeout,
		IdleTimeout:       cfg.Control.IdleTimeout,
		MaxHeaderBytes:    cfg.Control.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		appLog.Info("control plane listening",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.Control.TLSEnabled),
		)
		var err error
		if cfg.Control.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Control.TLSCert, cfg.Control.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("control plane server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 4. Graceful Shutdown
	// -------------------------------------------------------------------------
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		appLog.Info("shutdown signal received, stopping control plane")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control plane shutdown failed: %w", err)
	}
	// Let pending document pushes finish before the KV client closes.
	api.Wait()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("observability shutdown failed", slog.Any("error", err))
	}

	appLog.Info("control plane exited successfully")
	return nil
}

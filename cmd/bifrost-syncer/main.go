// Package main runs the Bifrost syncer, the worker that copies the rule table
// into every store the edge can read from.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/bifrost/internal/awsclient"
	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/database"
	"github.com/rafaeljc/bifrost/internal/kvstore"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/provider"
	"github.com/rafaeljc/bifrost/internal/publish"
	"github.com/rafaeljc/bifrost/internal/store"
	"github.com/rafaeljc/bifrost/internal/syncer"
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
	if !cfg.Database.IsConfigured() {
		return fmt.Errorf("syncer requires database configuration")
	}

	appLog := logger.New(&cfg.App)
	slog.SetDefault(appLog)
	cfg.LogConfig(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Source of truth
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	checkers := []observability.Checker{database.NewHealthChecker(pool)}

	// -------------------------------------------------------------------------
	// 3. Publishers
	// -------------------------------------------------------------------------
	var publishers []publish.Publisher
	for _, target := range cfg.Syncer.Publishers {
		switch target {
		case config.PublisherKV:
			if !cfg.Redis.IsConfigured() {
				return fmt.Errorf("kv publisher requires redis configuration")
			}
			kv, err := kvstore.Open(ctx, &cfg.Redis, cfg.Provider.KVDriver)
			if err != nil {
				return fmt.Errorf("failed to connect to kv store: %w", err)
			}
			defer kv.Close()
			publishers = append(publishers, publish.NewKV(kv, cfg.Provider.KVKey))
			checkers = append(checkers, kvstore.NewHealthChecker(kv, cfg.Provider.KVDriver))

		case config.PublisherBlob:
			awsCfg, err := awsclient.Load(ctx, cfg.AWS.Region)
			if err != nil {
				return err
			}
			var location provider.LocationResolver = provider.StaticLocation(cfg.Provider.BlobBucket)
			if cfg.Provider.BlobBucket == "" {
				location = provider.NewSSMLocation(awsclient.NewSSM(awsCfg, cfg.AWS.Endpoint), cfg.Provider.BlobParameter)
			}
			publishers = append(publishers, publish.NewBlob(location, awsclient.NewS3(awsCfg, cfg.AWS.Endpoint), cfg.Provider.BlobKey))

		case config.PublisherTable:
			// Writes go to the home region; the global table replicates them.
			awsCfg, err := awsclient.Load(ctx, cfg.AWS.Region)
			if err != nil {
				return err
			}
			publishers = append(publishers, publish.NewTable(awsclient.NewDynamoDB(awsCfg, cfg.AWS.Endpoint), cfg.Provider.TableName))
		}
	}
	if len(publishers) == 0 {
		return fmt.Errorf("no syncer publishers configured")
	}

	obsServer := observability.NewServer(appLog, &cfg.Observability, checkers...)
	obsServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		_ = obsServer.Shutdown(shutdownCtx)
	}()

	// -------------------------------------------------------------------------
	// 4. Run until signalled
	// -------------------------------------------------------------------------
	svc := syncer.New(appLog, cfg.Syncer, store.NewPostgresStore(pool), publishers...)
	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("syncer failed: %w", err)
	}

	appLog.Info("syncer exited successfully")
	return nil
}

// Package syncer implements the background worker that reconciles the rule
// table (PostgreSQL, the source of truth) into every store the edge reads.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/publish"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Service orchestrates the synchronization process.
type Service struct {
	logger     *slog.Logger
	config     config.SyncerConfig
	repo       store.RuleRepository
	publishers []publish.Publisher
}

// New creates a new Syncer service publishing to every publisher on each cycle.
func New(logger *slog.Logger, cfg config.SyncerConfig, repo store.RuleRepository, publishers ...publish.Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if repo == nil {
		panic("syncer: rule repository cannot be nil")
	}
	if len(publishers) == 0 {
		panic("syncer: at least one publisher is required")
	}

	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Second
	}

	return &Service{
		logger:     logger,
		config:     cfg,
		repo:       repo,
		publishers: publishers,
	}
}

// Run starts the syncer loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service",
		slog.Duration("interval", s.config.Interval),
		slog.Int("publishers", len(s.publishers)),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial sync failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping...")
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				// Retried on the next tick.
				s.logger.Error("sync cycle failed", slog.Any("error", err))
			}
		}
	}
}

// Sync performs a single reconciliation cycle: read every rule, render the
// document once, push it to each publisher. A failing publisher does not stop
// the others; their errors are joined.
func (s *Service) Sync(ctx context.Context) error {
	start := time.Now()
	defer func() { observability.SyncerRunDuration.Observe(time.Since(start).Seconds()) }()

	rules, err := s.repo.AllRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	doc := store.BuildDocument(rules)
	observability.SyncerRulesPublished.Set(float64(len(doc)))

	policy := publish.RetryPolicy{MaxRetries: s.config.MaxRetries, BaseDelay: s.config.BaseRetryDelay}

	var errs []error
	for _, p := range s.publishers {
		if err := publish.WithRetry(ctx, s.logger, p, doc, policy); err != nil {
			observability.SyncerPublishTotal.WithLabelValues(p.Name(), "fail").Inc()
			s.logger.Warn("failed to publish document",
				slog.String("publisher", p.Name()),
				slog.Any("error", err),
			)
			errs = append(errs, err)
			continue
		}
		observability.SyncerPublishTotal.WithLabelValues(p.Name(), "success").Inc()
	}

	s.logger.Info("sync cycle completed",
		slog.Int("rules", len(doc)),
		slog.Int("publishers", len(s.publishers)),
		slog.Int("errors", len(errs)),
		slog.Duration("duration", time.Since(start)),
	)
	return errors.Join(errs...)
}

// Package publish pushes the rule document from the source of truth to the
// stores the edge providers read: the key/value store, an S3 object and a
// DynamoDB table.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rafaeljc/bifrost/internal/store"
)

// Publisher writes a complete document to one target. A successful Publish
// leaves the target holding exactly doc.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc store.Document) error
}

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay doubles after every failed attempt.
	BaseDelay time.Duration
}

// WithRetry publishes doc through p, retrying with exponential backoff.
// It gives up early when ctx ends.
func WithRetry(ctx context.Context, log *slog.Logger, p Publisher, doc store.Document, policy RetryPolicy) error {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 100 * time.Millisecond
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := p.Publish(ctx, doc)
		if err != nil && attempt <= policy.MaxRetries {
			log.Warn("publish failed, retrying",
				slog.String("publisher", p.Name()),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(policy.MaxRetries+1)))
	if err != nil {
		return fmt.Errorf("publish to %s failed after %d attempts: %w", p.Name(), attempt, err)
	}
	return nil
}

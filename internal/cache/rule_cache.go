// Package cache holds the per-process rule cache that fronts every
// configuration provider on the edge.
//
// Storage is a bounded otter cache (S3-FIFO). Freshness is tracked here rather
// than by otter's TTL so that expiry is decided against an injected clock and a
// stale entry survives until a refresh succeeds.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
)

// StalePolicy decides what a lookup returns when a refresh fails and a stale
// entry exists.
type StalePolicy string

const (
	// ServeStale returns the stale rule (bounded by MaxStale, if set).
	ServeStale StalePolicy = "serve-stale"
	// FailOpen returns the fetch error; the caller forwards the request unmodified.
	FailOpen StalePolicy = "fail-open"
)

// CachedRule is a rule together with the instant it was fetched.
type CachedRule struct {
	Rule      experiment.SegmentationRule
	FetchedAt time.Time
}

// Freshness classifies a cache read.
type Freshness int

const (
	Missing Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// FetchFunc loads a rule from the backend. provider.Provider.Fetch satisfies it.
type FetchFunc func(ctx context.Context, path string) (experiment.SegmentationRule, error)

// Options configures a RuleCache.
type Options struct {
	// Capacity is the hard cap on cached paths.
	Capacity int
	// Policy applies when a refresh fails over a stale entry. Defaults to ServeStale.
	Policy StalePolicy
	// MaxStale bounds how long past its TTL an entry may still be served. Zero means unbounded.
	MaxStale time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// RuleCache is safe for concurrent use. At most one backend fetch per path is
// in flight at any time.
type RuleCache struct {
	store    otter.Cache[string, CachedRule]
	group    singleflight.Group
	now      func() time.Time
	policy   StalePolicy
	maxStale time.Duration
}

// New builds a RuleCache.
func New(opts Options) (*RuleCache, error) {
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("rule cache capacity must be positive, got %d", opts.Capacity)
	}
	switch opts.Policy {
	case "":
		opts.Policy = ServeStale
	case ServeStale, FailOpen:
	default:
		return nil, fmt.Errorf("unknown stale policy %q", opts.Policy)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store, err := otter.MustBuilder[string, CachedRule](opts.Capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build rule cache: %w", err)
	}

	return &RuleCache{
		store:    store,
		now:      opts.Now,
		policy:   opts.Policy,
		maxStale: opts.MaxStale,
	}, nil
}

// Lookup reads the entry for path and classifies it against ttl at instant now.
// It has no side effects.
func (c *RuleCache) Lookup(path string, ttl time.Duration, now time.Time) (CachedRule, Freshness) {
	entry, ok := c.store.Get(path)
	if !ok {
		return CachedRule{}, Missing
	}
	if now.Sub(entry.FetchedAt) <= ttl {
		return entry, Fresh
	}
	return entry, Stale
}

// GetOrFetch returns the rule for path, calling fetch when the entry is missing
// or older than ttl.
//
// The backend call is shared by concurrent callers and detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx ends.
// A failed fetch never replaces a stored entry.
func (c *RuleCache) GetOrFetch(ctx context.Context, path string, ttl time.Duration, fetch FetchFunc) (experiment.SegmentationRule, error) {
	now := c.now()
	entry, state := c.Lookup(path, ttl, now)
	if state == Fresh {
		observability.RuleCacheHits.Inc()
		return entry.Rule, nil
	}
	observability.RuleCacheMisses.Inc()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (any, error) {
		rule, err := fetch(detached, path)
		if err != nil {
			return nil, err
		}
		fresh := CachedRule{Rule: rule, FetchedAt: c.now()}
		c.store.Set(path, fresh)
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			observability.RuleCacheSharedFetches.Inc()
		}
		if res.Err == nil {
			return res.Val.(CachedRule).Rule, nil
		}
		return c.fallback(ctx, path, ttl, now, entry, state, res.Err)
	case <-ctx.Done():
		return c.fallback(ctx, path, ttl, now, entry, state, experiment.FetchFailure("cache", path, ctx.Err()))
	}
}

// fallback applies the stale policy after a failed refresh.
func (c *RuleCache) fallback(ctx context.Context, path string, ttl time.Duration, now time.Time, entry CachedRule, state Freshness, cause error) (experiment.SegmentationRule, error) {
	if state != Stale || c.policy != ServeStale {
		return experiment.SegmentationRule{}, cause
	}
	age := now.Sub(entry.FetchedAt)
	if c.maxStale > 0 && age > ttl+c.maxStale {
		return experiment.SegmentationRule{}, cause
	}

	observability.RuleCacheStaleServed.Inc()
	logger.FromContext(ctx).Warn("serving stale rule after refresh failure",
		slog.String("path", path),
		slog.Duration("age", age),
		slog.Any("error", cause),
	)
	return entry.Rule, nil
}

// Invalidate drops the entry for path.
func (c *RuleCache) Invalidate(path string) {
	c.store.Delete(path)
}

// Len returns the number of cached paths.
func (c *RuleCache) Len() int {
	return c.store.Size()
}

// RunMetricsCollector publishes the item count every interval until ctx ends.
func (c *RuleCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RuleCacheItems.Set(float64(c.store.Size()))
		}
	}
}

// Close shuts down otter's background goroutines.
func (c *RuleCache) Close() {
	c.store.Close()
}

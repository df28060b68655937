package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/observability"
)

// timeoutProvider bounds every Fetch with a deadline.
type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds each call to next by d. A deadline hit surfaces as a fetch failure.
func WithTimeout(next Provider, d time.Duration) Provider {
	if d <= 0 {
		return next
	}
	return &timeoutProvider{next: next, timeout: d}
}

func (t *timeoutProvider) Name() string { return t.next.Name() }

func (t *timeoutProvider) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	rule, err := t.next.Fetch(ctx, path)
	if err != nil && ctx.Err() != nil && !errors.Is(err, experiment.ErrConfigFetch) {
		return experiment.SegmentationRule{}, experiment.FetchFailure(t.Name(), path, errors.Join(ctx.Err(), err))
	}
	return rule, err
}

// BreakerSettings tunes WithBreaker.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker guards next with a consecutive-failure circuit breaker. While the
// circuit is open, Fetch fails immediately with ErrConfigFetch. A missing rule
// is an answer, not a failure, and does not count towards tripping.
func WithBreaker(next Provider, s BreakerSettings) Provider {
	if s.Failures == 0 {
		s.Failures = 5
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	name := next.Name()
	observability.ProviderBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, experiment.ErrConfigMissing)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.ProviderBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("provider circuit breaker changed state",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &breakerProvider{next: next, cb: cb}
}

func (b *breakerProvider) Name() string { return b.next.Name() }

func (b *breakerProvider) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Fetch(ctx, path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return experiment.SegmentationRule{}, experiment.FetchFailure(b.Name(), path, err)
	}
	if err != nil {
		return experiment.SegmentationRule{}, err
	}
	return out.(experiment.SegmentationRule), nil
}

type instrumentedProvider struct {
	next Provider
}

// Instrumented records latency and outcome of every call to next.
func Instrumented(next Provider) Provider {
	return &instrumentedProvider{next: next}
}

func (i *instrumentedProvider) Name() string { return i.next.Name() }

func (i *instrumentedProvider) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	start := time.Now()
	rule, err := i.next.Fetch(ctx, path)

	name := i.next.Name()
	observability.ProviderFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = experiment.FailureKind(err)
	}
	observability.ProviderFetchTotal.WithLabelValues(name, result).Inc()

	return rule, err
}

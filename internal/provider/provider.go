// Package provider implements the configuration sources that supply
// segmentation rules to the edge, plus the decorators (timeout, circuit
// breaker, metrics) every source is wrapped in.
//
// All sources fail with an *experiment.Failure wrapping one of
// experiment.ErrConfigFetch, experiment.ErrConfigParse or
// experiment.ErrConfigMissing. None of them ever returns a partial rule.
package provider

import (
	"context"
	"errors"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// Provider fetches the segmentation rule for a request path.
type Provider interface {
	// Name identifies the backend in logs and metrics ("kv", "s3", ...).
	Name() string

	// Fetch returns the rule for path. It must honour ctx cancellation.
	Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error)
}

// HealthChecker implements observability.Checker by fetching a probe path.
// A backend that answers "no rule" is reachable, hence healthy.
type HealthChecker struct {
	provider Provider
	path     string
}

// NewHealthChecker probes p with path.
func NewHealthChecker(p Provider, path string) *HealthChecker {
	if path == "" {
		path = "/"
	}
	return &HealthChecker{provider: p, path: path}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "provider:" + h.provider.Name()
}

// Check fetches the probe path.
func (h *HealthChecker) Check(ctx context.Context) error {
	_, err := h.provider.Fetch(ctx, h.path)
	if err == nil || errors.Is(err, experiment.ErrConfigMissing) {
		return nil
	}
	return err
}

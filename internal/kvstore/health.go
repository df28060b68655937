package kvstore

import (
	"context"
	"fmt"
)

// HealthChecker implements the observability.Checker interface for a Store.
type HealthChecker struct {
	store Store
	name  string
}

// NewHealthChecker creates a new health checker for the given store.
func NewHealthChecker(store Store, name string) *HealthChecker {
	if name == "" {
		name = DriverRedis
	}
	return &HealthChecker{store: store, name: name}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return h.name
}

// Check verifies the connection using Ping.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("%s store is nil", h.name)
	}
	return h.store.Ping(ctx)
}

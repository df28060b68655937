// Package kvstore wraps the fast key/value stores (Redis, Valkey) that hold the
// published experiment document. The edge reads it; the control plane and the
// syncer write it.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the minimal key/value surface the rest of the system needs.
type Store interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key without expiry.
	Set(ctx context.Context, key string, value []byte) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// namespaced prefixes key with prefix, e.g. "bifrost:config".
func namespaced(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", prefix, key)
}

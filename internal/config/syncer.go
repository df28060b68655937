package config

import "time"

// Publisher targets for the syncer.
const (
	PublisherKV    = "kv"
	PublisherBlob  = "blob"
	PublisherTable = "table"
)

// SyncerConfig contains configuration for the Syncer worker service.
type SyncerConfig struct {
	Interval       time.Duration `envconfig:"INTERVAL" default:"10s" validate:"min=1s"`
	Publishers     []string      `envconfig:"PUBLISHERS" default:"kv" validate:"dive,oneof=kv blob table"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"100ms"`
}

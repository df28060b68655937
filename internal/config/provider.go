package config

import (
	"fmt"
	"time"
)

// Provider kinds accepted by BIFROST_PROVIDER_KIND.
const (
	ProviderStatic   = "static"
	ProviderKV       = "kv"
	ProviderBlob     = "blob"
	ProviderTable    = "table"
	ProviderPostgres = "postgres"
	ProviderOrigin   = "origin"
)

// ProviderConfig selects and tunes the backing store for segmentation rules.
type ProviderConfig struct {
	Kind    string        `envconfig:"KIND" default:"static" validate:"oneof=static kv blob table postgres origin"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"50ms" validate:"gt=0"`

	// Static rule (compiled-in defaults).
	StaticThreshold int    `envconfig:"STATIC_THRESHOLD" default:"80" validate:"min=0,max=100"`
	StaticVariantA  string `envconfig:"STATIC_VARIANT_A" default:"/index.html"`
	StaticVariantB  string `envconfig:"STATIC_VARIANT_B" default:"/index_b.html"`

	// Key/value store.
	KVKey    string `envconfig:"KV_KEY" default:"config"`
	KVDriver string `envconfig:"KV_DRIVER" default:"redis" validate:"oneof=redis valkey"`

	// Blob store. Either Bucket is set directly or Parameter names the
	// SSM parameter holding the bucket name.
	BlobBucket    string `envconfig:"BLOB_BUCKET"`
	BlobParameter string `envconfig:"BLOB_PARAMETER"`
	BlobKey       string `envconfig:"BLOB_KEY" default:"config/ab_testing_config.json"`

	// Replicated table store.
	TableName string `envconfig:"TABLE_NAME" default:"WebsiteRedirection"`

	// Origin document URL (e.g. https://cdn.example.com/config/ab_testing_config.json).
	OriginURL string `envconfig:"ORIGIN_URL"`

	// Circuit breaker guarding the backend.
	BreakerEnabled     bool          `envconfig:"BREAKER_ENABLED" default:"true"`
	BreakerFailures    uint32        `envconfig:"BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"10s"`
}

// Validate checks that the backend required by Kind is configured.
func (c *ProviderConfig) Validate(root *Config) error {
	switch c.Kind {
	case ProviderStatic:
		if c.StaticVariantA == "" || c.StaticVariantB == "" {
			return fmt.Errorf("static provider requires both variant URIs")
		}
	case ProviderKV:
		if err := validateNoWhitespace(c.KVKey, "kv key"); err != nil {
			return err
		}
		if !root.Redis.IsConfigured() {
			return fmt.Errorf("kv provider requires redis configuration")
		}
	case ProviderBlob:
		if c.BlobBucket == "" && c.BlobParameter == "" {
			return fmt.Errorf("blob provider requires a bucket or an SSM parameter name")
		}
		if err := validateNoWhitespace(c.BlobKey, "blob key"); err != nil {
			return err
		}
	case ProviderTable:
		if err := validateNoWhitespace(c.TableName, "table name"); err != nil {
			return err
		}
	case ProviderPostgres:
		if !root.Database.IsConfigured() {
			return fmt.Errorf("postgres provider requires database configuration")
		}
	case ProviderOrigin:
		if _, err := parseAndValidateURL(c.OriginURL, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid provider origin URL: %w", err)
		}
	}

	return nil
}

// Stale policies for the rule cache.
const (
	StalePolicyServeStale = "serve-stale"
	StalePolicyFailOpen   = "fail-open"
)

// CacheConfig tunes the node-local rule cache.
type CacheConfig struct {
	TTL         time.Duration `envconfig:"TTL" default:"60s" validate:"gt=0"`
	Capacity    int           `envconfig:"CAPACITY" default:"1000" validate:"min=1"`
	StalePolicy string        `envconfig:"STALE_POLICY" default:"serve-stale" validate:"oneof=serve-stale fail-open"`
	// MaxStale bounds how long past TTL a stale rule may be served. Zero means unbounded.
	MaxStale time.Duration `envconfig:"MAX_STALE" default:"0s" validate:"min=0"`
}

// Validate performs validation on the CacheConfig.
func (c *CacheConfig) Validate() error {
	if c.StalePolicy == StalePolicyFailOpen && c.MaxStale > 0 {
		return fmt.Errorf("cache max_stale has no effect with the %s policy", StalePolicyFailOpen)
	}
	return nil
}

// AWSConfig holds settings shared by the AWS-backed providers and publishers.
type AWSConfig struct {
	// Region is the caller's region. Empty falls back to the SDK default chain.
	Region string `envconfig:"REGION"`

	// ReplicaRegions lists regions holding a table replica. Callers outside
	// this set read from FallbackRegion.
	ReplicaRegions []string `envconfig:"REPLICA_REGIONS" default:"us-east-1,us-east-2,us-west-2,eu-west-2,eu-central-1"`
	FallbackRegion string   `envconfig:"FALLBACK_REGION" default:"us-east-1"`

	// Endpoint overrides the service endpoint (LocalStack and friends).
	Endpoint string `envconfig:"ENDPOINT"`
}

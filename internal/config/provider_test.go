package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should accept the kv provider with redis",
			envVars: mergeEnvVars(map[string]string{
				"BIFROST_PROVIDER_KIND":      "kv",
				"BIFROST_PROVIDER_KV_DRIVER": "valkey",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ProviderKV, cfg.Provider.Kind)
				assert.Equal(t, "valkey", cfg.Provider.KVDriver)
				assert.Equal(t, "config", cfg.Provider.KVKey)
			},
		},
		{
			name:    "Should reject the kv provider without redis",
			envVars: map[string]string{"BIFROST_PROVIDER_KIND": "kv"},
			wantErr: true,
		},
		{
			name:    "Should reject the postgres provider without a database",
			envVars: map[string]string{"BIFROST_PROVIDER_KIND": "postgres"},
			wantErr: true,
		},
		{
			name: "Should accept the blob provider with an SSM parameter",
			envVars: map[string]string{
				"BIFROST_PROVIDER_KIND":           "blob",
				"BIFROST_PROVIDER_BLOB_PARAMETER": "/ab-testing/config-bucket",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "config/ab_testing_config.json", cfg.Provider.BlobKey)
			},
		},
		{
			name:    "Should reject the blob provider without bucket or parameter",
			envVars: map[string]string{"BIFROST_PROVIDER_KIND": "blob"},
			wantErr: true,
		},
		{
			name: "Should accept the table provider and region settings",
			envVars: map[string]string{
				"BIFROST_PROVIDER_KIND":       "table",
				"BIFROST_AWS_REGION":          "ap-south-1",
				"BIFROST_AWS_REPLICA_REGIONS": "us-east-1,eu-west-2",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "WebsiteRedirection", cfg.Provider.TableName)
				assert.Equal(t, []string{"us-east-1", "eu-west-2"}, cfg.AWS.ReplicaRegions)
				assert.Equal(t, "us-east-1", cfg.AWS.FallbackRegion)
			},
		},
		{
			name:    "Should reject the origin provider without a URL",
			envVars: map[string]string{"BIFROST_PROVIDER_KIND": "origin"},
			wantErr: true,
		},
		{
			name:    "Should reject an unknown provider",
			envVars: map[string]string{"BIFROST_PROVIDER_KIND": "etcd"},
			wantErr: true,
		},
		{
			name:    "Should reject a static threshold above 100",
			envVars: map[string]string{"BIFROST_PROVIDER_STATIC_THRESHOLD": "101"},
			wantErr: true,
		},
		{
			name: "Should parse breaker settings",
			envVars: map[string]string{
				"BIFROST_PROVIDER_BREAKER_FAILURES":     "3",
				"BIFROST_PROVIDER_BREAKER_OPEN_TIMEOUT": "30s",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, uint32(3), cfg.Provider.BreakerFailures)
				assert.Equal(t, 30*time.Second, cfg.Provider.BreakerOpenTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadWith(t, tt.envVars)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}

func TestCacheConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{name: "Should accept fail-open without max stale", envVars: map[string]string{"BIFROST_CACHE_STALE_POLICY": "fail-open"}},
		{name: "Should accept serve-stale with max stale", envVars: map[string]string{"BIFROST_CACHE_MAX_STALE": "5m"}},
		{name: "Should reject max stale with fail-open", envVars: map[string]string{"BIFROST_CACHE_STALE_POLICY": "fail-open", "BIFROST_CACHE_MAX_STALE": "5m"}, wantErr: true},
		{name: "Should reject an unknown policy", envVars: map[string]string{"BIFROST_CACHE_STALE_POLICY": "always"}, wantErr: true},
		{name: "Should reject a zero TTL", envVars: map[string]string{"BIFROST_CACHE_TTL": "0s"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWith(t, tt.envVars)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

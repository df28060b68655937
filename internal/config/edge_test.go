package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should apply edge defaults",
			envVars: map[string]string{},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"/"}, cfg.Edge.Paths)
				assert.Equal(t, "X-Experiment", cfg.Edge.CookieName)
				assert.Equal(t, 720*time.Hour, cfg.Edge.CookieMaxAge)
				assert.True(t, cfg.Edge.CookieHTTPOnly)
				assert.False(t, cfg.Edge.CookieSecure)
				assert.Equal(t, "X-Experiment-Decision", cfg.Edge.CarrierHeader)
				assert.Empty(t, cfg.Edge.HashHeader)
			},
		},
		{
			name: "Should parse several experiment paths",
			envVars: map[string]string{
				"BIFROST_EDGE_PATHS":       "/,/pricing,/signup",
				"BIFROST_EDGE_HASH_HEADER": "X-Client-Id",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"/", "/pricing", "/signup"}, cfg.Edge.Paths)
				assert.Equal(t, "X-Client-Id", cfg.Edge.HashHeader)
			},
		},
		{
			name:    "Should reject a relative experiment path",
			envVars: map[string]string{"BIFROST_EDGE_PATHS": "pricing"},
			wantErr: true,
		},
		{
			name:    "Should reject an origin without scheme",
			envVars: map[string]string{"BIFROST_EDGE_ORIGIN_URL": "origin.internal:8081"},
			wantErr: true,
		},
		{
			name:    "Should reject an invalid cookie name",
			envVars: map[string]string{"BIFROST_EDGE_COOKIE_NAME": "bad;name"},
			wantErr: true,
		},
		{
			name:    "Should reject an invalid port",
			envVars: map[string]string{"BIFROST_EDGE_PORT": "http"},
			wantErr: true,
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

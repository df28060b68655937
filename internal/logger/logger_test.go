package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("Should emit JSON with identity attributes", func(t *testing.T) {
		// Arrange
		var buf bytes.Buffer
		cfg := &config.AppConfig{
			Name:        "bifrost-edge",
			Version:     "1.2.3",
			Environment: config.EnvironmentProduction,
			LogLevel:    "info",
			LogFormat:   "json",
		}

		// Act
		log := NewWithWriter(cfg, &buf)
		log.Info("visitor bucketed", slog.String("variant", "B_VERSION"))

		// Assert
		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "visitor bucketed", line["msg"])
		assert.Equal(t, "bifrost-edge", line["service"])
		assert.Equal(t, "1.2.3", line["version"])
		assert.Equal(t, "production", line["env"])
		assert.Equal(t, "B_VERSION", line["variant"])
		assert.NotContains(t, line, "source", "source location is disabled in production")
	})

	t.Run("Should emit text and honour the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &config.AppConfig{
			Name:        "bifrost-edge",
			Environment: "development",
			LogLevel:    "warn",
			LogFormat:   "text",
		}

		log := NewWithWriter(cfg, &buf)
		log.Info("dropped")
		log.Warn("kept")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "msg=kept")
		assert.Contains(t, out, "service=bifrost-edge")
	})

	t.Run("Should panic on nil config", func(t *testing.T) {
		assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "mixed case", input: "Warn", want: slog.LevelWarn},
		{name: "error", input: "ERROR", want: slog.LevelError},
		{name: "unknown falls back to info", input: "super-critical", want: slog.LevelInfo},
		{name: "empty falls back to info", input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

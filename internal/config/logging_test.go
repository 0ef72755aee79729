package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	logger.Warn().Str("event_id", "evt-1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "eventplus", entry["service"])
	assert.Equal(t, "evt-1", entry["event_id"])
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "debug", Format: "CONSOLE"}, &buf)
	logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestLevels(t *testing.T) {
	tests := []struct {
		in    string
		zl    zerolog.Level
		slogL slog.Level
	}{
		{"debug", zerolog.DebugLevel, slog.LevelDebug},
		{"INFO", zerolog.InfoLevel, slog.LevelInfo},
		{" warn ", zerolog.WarnLevel, slog.LevelWarn},
		{"error", zerolog.ErrorLevel, slog.LevelError},
		{"", zerolog.InfoLevel, slog.LevelInfo},
		{"verbose", zerolog.InfoLevel, slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.zl, zerologLevel(tt.in), tt.in)
		assert.Equal(t, tt.slogL, slogLevel(tt.in), tt.in)
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newSlogLogger(LoggingConfig{Level: "warn"}, &buf)

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("job failed", "job_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job failed", entry["msg"])
	assert.Equal(t, "jobs", entry["component"])
	assert.EqualValues(t, 7, entry["job_id"])
}

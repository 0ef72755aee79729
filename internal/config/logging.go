package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger and installs it as the zerolog global.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	logger := newLogger(cfg, os.Stdout)
	log.Logger = logger
	return logger
}

func newLogger(cfg LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(zerologLevel(cfg.Level)).
		With().Timestamp().Str("service", "eventplus").
		Logger()
}

// NewSlogLogger returns the structured logger handed to River, which only
// speaks log/slog. It follows the same level; River's debug chatter stays
// below info unless asked for.
func NewSlogLogger(cfg LoggingConfig) *slog.Logger {
	return newSlogLogger(cfg, os.Stdout)
}

func newSlogLogger(cfg LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "console") {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler).With("service", "eventplus", "component", "jobs")
}

func zerologLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func slogLevel(level string) slog.Level {
	switch zerologLevel(level) {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel, zerolog.Disabled:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

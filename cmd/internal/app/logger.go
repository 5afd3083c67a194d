package app

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger handed to every component.
type Logger = *slog.Logger

// NewLogger builds the JSON logger at the requested level and makes it the
// slog default, so packages that log through slog directly share the same
// handler.
func NewLogger(level string) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}))
	slog.SetDefault(log)
	return log
}

// parseLevel maps AGORA_LOG_LEVEL values to slog levels; anything
// unrecognized means info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

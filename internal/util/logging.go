package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide slog logger: JSON lines on stderr at
// the given minimum level, tagged with the service name so log lines from
// the API and the worker pool are distinguishable from other processes.
func InitLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler).With("service", "studyforge")
	slog.SetDefault(logger)
	return logger
}

// parseLevel accepts debug, info, warn/warning and error, case-insensitive.
// Anything else falls back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Package logger provides structured logging configuration using slog.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup initializes a slog.Logger for one settlement binary. Every record
// carries the service name so the three processes can share a log sink.
func Setup(level, service string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler).With(slog.String("service", service))
}

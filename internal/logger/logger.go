// Package logger provides structured logging setup for AgentBridge.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/AgentBridge/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Output is JSON
// to stderr (stdout stays clean for any stdio-attached client) with a
// "service" attribute on every record. When async buffering is enabled the
// returned Closer flushes pending records on shutdown.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		async := NewAsyncHandler(handler, cfg.AsyncBuffer, 1)
		handler = async
		closer = async
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Package logger provides structured logging using slog.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Config holds logger configuration.
type Config struct {
	Level   slog.Level
	JSON    bool
	Verbose bool
	// Quiet drops everything below warn.
	Quiet bool
	// Output defaults to stderr so command output on stdout stays parseable.
	Output io.Writer
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	Logger = New(cfg)
	slog.SetDefault(Logger)
}

// New builds a logger without touching the global one.
func New(cfg Config) *slog.Logger {
	level := cfg.Level
	switch {
	case cfg.Verbose:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Verbose,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name such as "debug" or "WARN" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Default returns a basic default logger if Init hasn't been called.
func Default() *slog.Logger {
	if Logger == nil {
		Init(Config{Level: slog.LevelInfo})
	}
	return Logger
}

// WithRequestID returns a logger with the request ID attached.
func WithRequestID(requestID string) *slog.Logger {
	return Default().With(slog.String("request_id", requestID))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// With returns a logger with additional attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// Package log provides structured logging for tispark. It wraps Go's
// log/slog with per-module child loggers and a configurable output format.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by NewWithOptions.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logger wraps slog.Logger with module context.
type Logger struct {
	inner *slog.Logger
}

// Options configures a Logger.
type Options struct {
	Level  slog.Level
	Format string    // FormatJSON (default) or FormatText
	Output io.Writer // defaults to os.Stderr
}

// defaultLogger is handed to packages that are not given a logger.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	l, _ := NewWithOptions(Options{Level: level})
	return l
}

// NewWithOptions creates a Logger from opts. An unknown format is an error.
func NewWithOptions(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		return NewWithHandler(slog.NewJSONHandler(out, ho)), nil
	case FormatText:
		return NewWithHandler(slog.NewTextHandler(out, ho)), nil
	default:
		return nil, fmt.Errorf("log: unknown format %q", opts.Format)
	}
}

// NewWithHandler creates a Logger backed by h.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// ParseLevel parses a level name (debug, info, warn, error), case
// insensitively. The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger tagged with module=name.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

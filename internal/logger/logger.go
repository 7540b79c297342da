// Package logger sets up structured logging to a rotating file. The TUI owns
// the terminal, so nothing is ever logged to stdout or stderr.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a slog.Logger writing JSON lines to a rotating file.
type Logger struct {
	*slog.Logger
	// Path is the log file in use.
	Path string

	writer *lumberjack.Logger
	counts *counts
}

type counts struct {
	warn atomic.Int64
	err  atomic.Int64
}

// countingHandler counts WARN and ERROR records for the status bar.
type countingHandler struct {
	inner  slog.Handler
	counts *counts
}

func (h *countingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *countingHandler) Handle(ctx context.Context, r slog.Record) error {
	switch {
	case r.Level >= slog.LevelError:
		h.counts.err.Add(1)
	case r.Level >= slog.LevelWarn:
		h.counts.warn.Add(1)
	}
	return h.inner.Handle(ctx, r)
}

func (h *countingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &countingHandler{inner: h.inner.WithAttrs(attrs), counts: h.counts}
}

func (h *countingHandler) WithGroup(name string) slog.Handler {
	return &countingHandler{inner: h.inner.WithGroup(name), counts: h.counts}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
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

// DefaultPath is the log file used when none is configured.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sqlbrowse", "sqlbrowse.log")
}

// New creates a logger at level writing to path (DefaultPath when empty).
func New(level, path string) (*Logger, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}

	c := &counts{}
	handler := &countingHandler{
		inner:  slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)}),
		counts: c,
	}

	return &Logger{
		Logger: slog.New(handler),
		Path:   path,
		writer: writer,
		counts: c,
	}, nil
}

// Counts returns how many warnings and errors were logged.
func (l *Logger) Counts() (warn, errs int64) {
	return l.counts.warn.Load(), l.counts.err.Load()
}

// Close closes the log file.
func (l *Logger) Close() error {
	return l.writer.Close()
}

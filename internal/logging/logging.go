// Package logging provides structured logging for healthmon.
//
// This package wraps the standard library's log/slog package so that the
// store, the retention worker, the ingestion runner and the CLI all log the
// same way. It supports text and JSON output, configurable levels and
// component loggers.
//
// Usage:
//
//	logging.Init(slog.LevelInfo, false)
//
//	log := logging.Component("store")
//	log.Info("record inserted", "id", id, "metric_type", "cpu")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init initializes the global logger with the specified level and format.
// Logs go to stderr so command output on stdout stays machine readable.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stderr, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	InitWithHandler(handler)
}

// InitWithHandler initializes the global logger with a custom handler.
// Tests use it to capture or discard output.
func InitWithHandler(handler slog.Handler) {
	l := slog.New(handler)

	mu.Lock()
	logger = l
	mu.Unlock()

	slog.SetDefault(l)
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
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
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func current() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(slog.LevelInfo, false)
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component returns a logger for a specific component.
//
// The returned logger resolves the global logger lazily, so package level
// variables created before Init still honour the configured handler.
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{name: name})
}

// componentHandler forwards to the current global handler with a fixed
// component attribute.
type componentHandler struct {
	name  string
	attrs []slog.Attr
	group string
}

func (h *componentHandler) target() slog.Handler {
	base := current().Handler().WithAttrs([]slog.Attr{slog.String("component", h.name)})
	if len(h.attrs) > 0 {
		base = base.WithAttrs(h.attrs)
	}
	if h.group != "" {
		base = base.WithGroup(h.group)
	}
	return base
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return current().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.group = name
	return &c
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	l := current()

	if hostname, ok := ctx.Value(contextKeyHostname).(string); ok {
		l = l.With("hostname", hostname)
	}
	if metricType, ok := ctx.Value(contextKeyMetricType).(string); ok {
		l = l.With("metric_type", metricType)
	}
	if command, ok := ctx.Value(contextKeyCommand).(string); ok {
		l = l.With("command", command)
	}

	return l
}

type contextKey int

const (
	contextKeyHostname contextKey = iota
	contextKeyMetricType
	contextKeyCommand
)

// ContextWithHostname adds the originating host to the context for logging.
func ContextWithHostname(ctx context.Context, hostname string) context.Context {
	return context.WithValue(ctx, contextKeyHostname, hostname)
}

// ContextWithMetricType adds a metric type to the context for logging.
func ContextWithMetricType(ctx context.Context, metricType string) context.Context {
	return context.WithValue(ctx, contextKeyMetricType, metricType)
}

// ContextWithCommand adds the running CLI command to the context.
func ContextWithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, contextKeyCommand, command)
}

// Discard silences all logging. Intended for tests.
func Discard() {
	InitWithHandler(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

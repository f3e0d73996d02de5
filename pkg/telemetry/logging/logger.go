// Package logging configures the process-wide structured logger.
//
// The logger is log/slog with a JSON or text handler, wrapped so that the
// request ID placed in a context by the request-id middleware appears on
// every record logged through the *Context methods. Components log with
// plain slog; nothing in the codebase holds a logger instance.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mercator-hq/saturn/pkg/config"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Setup builds the logger described by cfg, installs it as the slog
// default, and returns it. A nil writer selects os.Stdout. Unknown levels
// or formats fall back to info/json with an error returned so the CLI can
// warn without losing logging entirely.
func Setup(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	lvl, levelErr := parseLevel(cfg.Level)
	fmtName, formatErr := parseFormat(cfg.Format)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch fmtName {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(&contextHandler{inner: handler})
	slog.SetDefault(logger)

	if levelErr != nil {
		return logger, levelErr
	}
	return logger, formatErr
}

// parseLevel maps a config level string onto slog.Level. Empty means
// info.
func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// parseFormat maps a config format string onto a handler name. Empty
// means json.
func parseFormat(format string) (string, error) {
	switch format {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q", format)
	}
}

// contextHandler decorates records with fields carried in the context.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := RequestID(ctx); id != "" {
		record.AddAttrs(slog.String("request_id", id))
	}
	return h.inner.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID carried by the context, or empty.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

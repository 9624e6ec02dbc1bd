// Package logger provides the application's structured logger built on log/slog.
//
// Handlers should log through FromContext so every line carries the request ID
// assigned by middleware.RequestLogger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var base = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

type ctxKey struct{}

// Init configures the base logger: JSON in production, text otherwise.
func Init(level, env string) *slog.Logger {
	return InitWithWriter(os.Stdout, level, env)
}

// InitWithWriter is Init writing to w.
func InitWithWriter(w io.Writer, level, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	base = slog.New(handler)
	slog.SetDefault(base)
	return base
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
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

// L returns the base logger.
func L() *slog.Logger {
	return base
}

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the request-scoped logger, or the base logger when ctx carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return base
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return base
}

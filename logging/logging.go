// Package logging provides component-scoped structured logging for the
// session engine, built on log/slog.
//
// Components attach themselves to a context once via WithComponent and then
// log through the package-level helpers. The host application controls the
// destination and level through Init; before Init is called, logs go to a
// discarding handler so library code never writes to stderr uninvited.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

type ctxKey struct{}

var base atomic.Pointer[slog.Logger]

func init() {
	base.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// Init routes all engine logs to w at the given level.
func Init(w io.Writer, level slog.Level) {
	base.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// InitWithLogger routes all engine logs through an existing logger, for hosts
// that already own a slog setup.
func InitWithLogger(l *slog.Logger) {
	if l != nil {
		base.Store(l)
	}
}

// WithComponent returns a context whose logger carries a component attribute.
func WithComponent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKey{}, from(ctx).With(slog.String("component", name)))
}

func from(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return base.Load()
}

// Debug logs at debug level using the context's component logger.
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	from(ctx).LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at info level using the context's component logger.
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	from(ctx).LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at warn level using the context's component logger.
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	from(ctx).LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at error level using the context's component logger.
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	from(ctx).LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// Package logging wraps log/slog with trace correlation, matching the rest
// of the helper's ambient stack: no third-party logging library, structured
// attributes only, and every call site carries a context.Context so a span's
// trace/span id rides along automatically.
package logging

import (
	"context"
	"log/slog"

	"github.com/nonary/displayhelper/internal/telemetry/tracing"
)

// Logger is the minimal surface every component depends on.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	WarnCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
	DebugCtx(ctx context.Context, msg string, attrs ...any)
}

type correlatedLogger struct{ base *slog.Logger }

// New returns a correlated Logger wrapping base (slog.Default() if nil).
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &correlatedLogger{base: base}
}

func (l *correlatedLogger) withIDs(ctx context.Context, attrs []any) []any {
	traceID, spanID := tracing.ExtractIDs(ctx)
	if traceID != "" || spanID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID), slog.String("span_id", spanID))
	}
	return attrs
}

func (l *correlatedLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, l.withIDs(ctx, attrs)...)
}
func (l *correlatedLogger) WarnCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.WarnContext(ctx, msg, l.withIDs(ctx, attrs)...)
}
func (l *correlatedLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, l.withIDs(ctx, attrs)...)
}
func (l *correlatedLogger) DebugCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.DebugContext(ctx, msg, l.withIDs(ctx, attrs)...)
}

// Nop returns a Logger that discards everything, used as a safe zero value in tests.
func Nop() Logger { return New(slog.New(slog.DiscardHandler)) }

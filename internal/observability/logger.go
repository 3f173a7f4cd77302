package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/sqlpilot/sqlpilot/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// NewLogger builds the process-wide logger. Every line carries the
// service and profile; per-traversal loggers layer the traversal id on
// top via TraversalLogger.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

// TraversalLogger scopes a logger to one traversal so every stage log,
// generation-call warning, and followup write shares the same
// traversal_id field.
func TraversalLogger(base *slog.Logger, traversalID string) *slog.Logger {
	return base.With(slog.String("traversal_id", traversalID))
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

package jobqueue

import (
	"context"
	"log/slog"

	"github.com/mousetube/mousetube-go/internal/logging"
)

const serviceName = "jobqueue"

// Package-level logger for job queue operations
var logger *slog.Logger

func init() {
	logger = logging.ForService(serviceName)

	// Defensive initialization for early startup scenarios before the
	// logging system is configured.
	if logger == nil {
		logger = slog.Default().With("service", serviceName)
	}
}

// GetLogger returns the jobqueue package logger.
func GetLogger() *slog.Logger {
	return logger
}

// Context key types for safe context value retrieval
type contextKey string

const traceIDKey contextKey = "jobqueue.trace_id"

// WithTraceID adds a trace ID to the context using the typed key.
// Ingress points should normalize their trace IDs through this.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// extractTraceID attempts to extract a trace ID from the context.
func extractTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// logAttrs appends the context trace ID, when present, to log args.
func logAttrs(ctx context.Context, args ...any) []any {
	if traceID := extractTraceID(ctx); traceID != "" {
		args = append(args, "trace_id", traceID)
	}
	return args
}

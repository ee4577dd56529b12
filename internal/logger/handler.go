package logger

import (
	"context"
	"log/slog"

	"crewmatch/apps/backend/internal/middleware"
)

// ContextHandler copies correlation, queue item and worker ids from the
// context onto each record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if id, ok := ctx.Value(middleware.QueueItemKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("queue_item_id", id))
	}
	if id, ok := ctx.Value(middleware.WorkerKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("worker_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

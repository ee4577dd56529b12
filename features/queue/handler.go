package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type enqueueRequest struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Priority   *int              `json:"priority"`
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}
	priority := DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	id, created, err := h.service.Enqueue(ctx, req.EntityType, req.EntityID, priority)
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue", "error", err, "entity_type", req.EntityType, "entity_id", req.EntityID)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"data": map[string]interface{}{"id": id, "created": created},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.ListFailed(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed queue items", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": items,
		"meta": map[string]int{"count": len(items)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying queue item", "queue_item_id", id)

	item, err := h.service.Retry(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retry queue item", "queue_item_id", id, "error", err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": item}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

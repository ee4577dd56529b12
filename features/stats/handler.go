package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/middleware"
)

type QueueCounter interface {
	Counts(ctx context.Context) (map[queue.Status]int, error)
}

type EmbeddingCounter interface {
	CountEmbedded(ctx context.Context) (candidates, opportunities int, err error)
}

// IndexCounter reports the size of the secondary vector index, when one is
// configured.
type IndexCounter interface {
	CountCandidates(ctx context.Context) (int, error)
}

type Handler struct {
	queue      QueueCounter
	embeddings EmbeddingCounter
	index      IndexCounter
}

func NewHandler(q QueueCounter, e EmbeddingCounter, idx IndexCounter) *Handler {
	return &Handler{queue: q, embeddings: e, index: idx}
}

type StatsResponse struct {
	Queue                 map[queue.Status]int `json:"queue"`
	EmbeddedCandidates    int                  `json:"embedded_candidates"`
	EmbeddedOpportunities int                  `json:"embedded_opportunities"`
	IndexedCandidates     *int                 `json:"indexed_candidates,omitempty"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	counts, err := h.queue.Counts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count queue items", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count queue items", http.StatusInternalServerError)
		return
	}

	cands, opps, err := h.embeddings.CountEmbedded(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count embeddings", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count embeddings", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Queue:                 counts,
		EmbeddedCandidates:    cands,
		EmbeddedOpportunities: opps,
	}

	if h.index != nil {
		n, err := h.index.CountCandidates(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count indexed candidates", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count indexed candidates", http.StatusInternalServerError)
			return
		}
		resp.IndexedCandidates = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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

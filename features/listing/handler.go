package listing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/middleware"
	"crewmatch/apps/backend/internal/tier"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) CandidateListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	listings, err := h.service.ForCandidate(ctx, id, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to rank listings", "candidate_id", id, "error", err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}
	if listings == nil {
		listings = []tier.Listing{}
	}

	perTier := map[string]int{"1": 0, "2": 0, "3": 0}
	for _, l := range listings {
		perTier[strconv.Itoa(int(l.Tier))]++
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": listings,
		"meta": map[string]interface{}{"count": len(listings), "tiers": perTier},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

type classifyRequest struct {
	JobTitle        string   `json:"job_title"`
	SoughtPositions []string `json:"sought_positions"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}
	c, err := Classify(req.JobTitle, req.SoughtPositions)
	if err != nil {
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": c}); err != nil {
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

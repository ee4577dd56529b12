package match

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/middleware"
	"crewmatch/apps/backend/internal/settings"
)

type OpportunityGetter interface {
	GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error)
}

type SettingsGetter interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Handler struct {
	orchestrator  *Orchestrator
	opportunities OpportunityGetter
	settings      SettingsGetter
}

func NewHandler(o *Orchestrator, opps OpportunityGetter, s SettingsGetter) *Handler {
	return &Handler{orchestrator: o, opportunities: opps, settings: s}
}

type briefRequest struct {
	Opportunity domain.Opportunity `json:"opportunity"`
	Options
}

// MatchBrief handles POST /matches with a structured hiring brief.
func (h *Handler) MatchBrief(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req briefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}
	req.Opportunity.Embedding = domain.Embedding{}

	h.run(ctx, w, req.Opportunity, req.Options)
}

// MatchOpportunity handles POST /opportunities/{id}/matches. The stored
// vector is reused only while it still matches the opportunity's text.
func (h *Handler) MatchOpportunity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var opts Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}

	opp, err := h.opportunities.GetOpportunity(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load opportunity", "opportunity_id", id, "error", err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}
	if !opp.Embedding.Fresh(h.orchestrator.QueryText(*opp)) {
		opp.Embedding = domain.Embedding{}
	}

	h.run(ctx, w, *opp, opts)
}

func (h *Handler) run(ctx context.Context, w http.ResponseWriter, opp domain.Opportunity, opts Options) {
	opts = h.withDefaults(ctx, opts)

	res, err := h.orchestrator.Match(ctx, opp, opts)
	if err != nil {
		slog.ErrorContext(ctx, "match failed", "opportunity_id", opp.ID, "error", err)
		status, code := apperr.HTTPStatus(err)
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": res,
		"meta": map[string]int{"count": res.Returned},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) withDefaults(ctx context.Context, opts Options) Options {
	if opts.Limit > 0 && opts.SimilarityThreshold != nil {
		return opts
	}
	cfg, err := h.settings.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load match settings, using defaults", "error", err)
		cfg = settings.Defaults()
	}
	if opts.Limit <= 0 {
		opts.Limit = cfg.MatchLimit
	}
	if opts.SimilarityThreshold == nil {
		t := cfg.SimilarityThreshold
		opts.SimilarityThreshold = &t
	}
	return opts
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

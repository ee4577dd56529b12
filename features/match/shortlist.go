package match

import (
	"context"
	"log/slog"

	"crewmatch/apps/backend/internal/domain"
)

// Shortlister orders documents by relevance to a query, most relevant
// first, returning indices into docs. Cross-encoder rerank APIs fit.
type Shortlister interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

func (o *Orchestrator) WithShortlister(s Shortlister) *Orchestrator {
	o.shortlister = s
	return o
}

// shortlist keeps the n candidates sent to the LLM. Without a shortlister,
// or when it fails, similarity order decides. Candidates the shortlister
// leaves out are topped up in similarity order.
func (o *Orchestrator) shortlist(ctx context.Context, opp domain.Opportunity, passed []domain.ScoredCandidate, n int) []domain.ScoredCandidate {
	if len(passed) <= n {
		return passed
	}
	if o.shortlister == nil {
		return passed[:n]
	}

	docs := make([]string, len(passed))
	for i, sc := range passed {
		docs[i] = candidateSummary(sc)
	}

	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	order, err := o.shortlister.Rerank(sctx, o.QueryText(opp), docs)
	if err != nil {
		slog.WarnContext(ctx, "shortlist failed, keeping similarity order", "error", err, "candidates", len(passed))
		return passed[:n]
	}

	out := make([]domain.ScoredCandidate, 0, n)
	seen := make(map[int]bool, n)
	for _, i := range order {
		if len(out) == n {
			break
		}
		if i < 0 || i >= len(passed) || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, passed[i])
	}
	for i := 0; len(out) < n && i < len(passed); i++ {
		if !seen[i] {
			out = append(out, passed[i])
		}
	}
	return out
}

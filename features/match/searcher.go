package match

import (
	"context"

	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/internal/domain"
)

type CandidateIndex interface {
	SearchCandidateIDs(ctx context.Context, vec []float32, q profile.SearchQuery) ([]domain.CandidateHit, error)
}

type CandidateLoader interface {
	GetCandidatesByIDs(ctx context.Context, ids []string) ([]domain.Candidate, error)
}

// HydratingSearcher searches an external vector index and loads the hits
// from Postgres. Hits whose row no longer exists are skipped.
type HydratingSearcher struct {
	index  CandidateIndex
	loader CandidateLoader
}

func NewHydratingSearcher(index CandidateIndex, loader CandidateLoader) *HydratingSearcher {
	return &HydratingSearcher{index: index, loader: loader}
}

func (s *HydratingSearcher) SearchCandidates(ctx context.Context, vec []float32, q profile.SearchQuery) ([]domain.ScoredCandidate, error) {
	hits, err := s.index.SearchCandidateIDs(ctx, vec, q)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rows, err := s.loader.GetCandidatesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Candidate, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}

	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, h := range hits {
		if c, ok := byID[h.ID]; ok {
			out = append(out, domain.ScoredCandidate{Candidate: c, Similarity: h.Similarity})
		}
	}
	return out, nil
}

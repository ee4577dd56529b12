// Package listing serves rule-based relevance tiers for job listings. No
// embeddings are involved.
package listing

import (
	"context"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/tier"
)

const (
	DefaultLimit = 200
	MaxLimit     = 1000
)

type Store interface {
	GetCandidate(ctx context.Context, id string) (*domain.Candidate, error)
	ListOpenOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ForCandidate ranks open opportunities for a candidate by tier, most
// recently published first within a tier.
func (s *Service) ForCandidate(ctx context.Context, candidateID string, limit int) ([]tier.Listing, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	opps, err := s.store.ListOpenOpportunities(ctx, limit)
	if err != nil {
		return nil, err
	}
	listings := make([]tier.Listing, len(opps))
	for i, o := range opps {
		listings[i] = tier.Listing{JobID: o.ID, Title: o.Title, PublishedAt: o.PublishedAt}
	}
	// A candidate without positions gets every listing in tier 3.
	return tier.Rank(listings, c.SoughtPositions()), nil
}

// Classification explains a single tier decision.
type Classification struct {
	Tier          tier.Tier       `json:"tier"`
	Level         tier.MatchLevel `json:"match_level"`
	JobDepartment string          `json:"job_department,omitempty"`
	NormalizedJob string          `json:"normalized_title"`
}

func Classify(jobTitle string, sought []string) (Classification, error) {
	if tier.NormalizePosition(jobTitle) == "" {
		return Classification{}, apperr.Validation("job_title is required")
	}
	return Classification{
		Tier:          tier.Classify(jobTitle, sought),
		Level:         tier.Level(jobTitle, sought),
		JobDepartment: tier.DepartmentOf(jobTitle),
		NormalizedJob: tier.NormalizePosition(jobTitle),
	}, nil
}

package settings

import (
	"context"

	"crewmatch/apps/backend/internal/apperr"
)

const (
	DefaultMatchLimit          = 10
	MaxMatchLimit              = 50
	DefaultSimilarityThreshold = 0.5
)

// Settings are operator-tunable match defaults, stored as a single row.
type Settings struct {
	ID                  int     `json:"-"`
	MatchLimit          int     `json:"match_limit"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

func Defaults() *Settings {
	return &Settings{ID: 1, MatchLimit: DefaultMatchLimit, SimilarityThreshold: DefaultSimilarityThreshold}
}

func (s *Settings) Validate() error {
	if s.MatchLimit < 1 || s.MatchLimit > MaxMatchLimit {
		return apperr.Validation("match_limit must be between 1 and %d", MaxMatchLimit)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return apperr.Validation("similarity_threshold must be between 0 and 1")
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}

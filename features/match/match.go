// Package match finds candidates for an opportunity: vector search, a
// deterministic hard-requirement filter, then an LLM re-rank.
package match

import (
	"context"

	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/internal/domain"
)

const (
	DefaultLimit     = 10
	MaxLimit         = 50
	DefaultThreshold = 0.5

	searchFactor = 3
	rerankFactor = 2
)

const (
	MessageNoneSearched = "No candidates are similar enough to this opportunity."
	MessageNoneEligible = "Candidates were found but none passed the hard requirements."
	MessageNoneRanked   = "Candidates passed the hard requirements but none were ranked."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type CandidateSearcher interface {
	SearchCandidates(ctx context.Context, vec []float32, q profile.SearchQuery) ([]domain.ScoredCandidate, error)
}

type Reranker interface {
	Rerank(ctx context.Context, systemPrompt, userPrompt string) ([]RankedCandidate, error)
}

// Options tune one match request. Zero values fall back to the defaults.
type Options struct {
	Limit                int      `json:"limit,omitempty"`
	SimilarityThreshold  *float64 `json:"similarity_threshold,omitempty"`
	VerificationTiers    []string `json:"verification_tiers,omitempty"`
	AvailabilityStatuses []string `json:"availability_statuses,omitempty"`
}

// RankedCandidate is one element of the re-rank response array.
type RankedCandidate struct {
	CandidateID string   `json:"candidate_id"`
	MatchScore  float64  `json:"match_score"`
	Strengths   []string `json:"strengths"`
	Concerns    []string `json:"concerns"`
	Summary     string   `json:"summary"`
}

type Match struct {
	Candidate  domain.Candidate `json:"candidate"`
	Similarity float64          `json:"similarity"`
	MatchScore float64          `json:"match_score"`
	Strengths  []string         `json:"strengths"`
	Concerns   []string         `json:"concerns"`
	Summary    string           `json:"summary"`
}

// Result keeps the three counts apart: how many candidates the vector search
// returned, how many of those passed the hard filter, and how many matches
// are in the response.
type Result struct {
	Matches       []Match `json:"matches"`
	TotalSearched int     `json:"total_searched"`
	PassedFilter  int     `json:"passed_filter"`
	Returned      int     `json:"returned"`
	Message       string  `json:"message,omitempty"`
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

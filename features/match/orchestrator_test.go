package match_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewmatch/apps/backend/features/match"
	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) SearchCandidates(ctx context.Context, vec []float32, q profile.SearchQuery) ([]domain.ScoredCandidate, error) {
	args := m.Called(ctx, vec, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredCandidate), args.Error(1)
}

type MockReranker struct{ mock.Mock }

func (m *MockReranker) Rerank(ctx context.Context, system, user string) ([]match.RankedCandidate, error) {
	args := m.Called(ctx, system, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]match.RankedCandidate), args.Error(1)
}

func indexOf(s, sub string) int { return strings.Index(s, sub) }

func brief() domain.Opportunity {
	return domain.Opportunity{
		ID:            "j1",
		Title:         "Deckhand",
		VesselType:    "motor",
		PrimaryRegion: "Mediterranean",
		Requirements:  domain.Requirements{Certifications: []string{"STCW"}},
	}
}

func eligible(id string, sim float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		Candidate:  domain.Candidate{ID: id, PrimaryPosition: "Deckhand", AvailabilityStatus: "available", Certifications: []string{"STCW"}},
		Similarity: sim,
	}
}

func ranked(ids ...string) []match.RankedCandidate {
	out := make([]match.RankedCandidate, len(ids))
	for i, id := range ids {
		out[i] = match.RankedCandidate{CandidateID: id, MatchScore: float64(95 - i), Summary: "fit " + id}
	}
	return out
}

type fixture struct {
	embedder *MockEmbedder
	searcher *MockSearcher
	reranker *MockReranker
	logs     *bytes.Buffer
	orch     *match.Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		embedder: new(MockEmbedder),
		searcher: new(MockSearcher),
		reranker: new(MockReranker),
		logs:     &bytes.Buffer{},
	}
	f.orch = match.NewOrchestrator(f.embedder, f.searcher, f.reranker, 0, match.NewLogger(f.logs))
	return f
}

func TestMatch_NothingSearched(t *testing.T) {
	f := newFixture()
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, []float32{0.1}, mock.Anything).Return([]domain.ScoredCandidate{}, nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalSearched)
	assert.Equal(t, 0, res.PassedFilter)
	assert.Equal(t, 0, res.Returned)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
	assert.Equal(t, match.MessageNoneSearched, res.Message)
	f.reranker.AssertNotCalled(t, "Rerank", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatch_NonePassFilter(t *testing.T) {
	f := newFixture()
	found := make([]domain.ScoredCandidate, 12)
	for i := range found {
		sc := eligible(fmt.Sprintf("c%d", i), 0.9)
		if i%2 == 0 {
			sc.Candidate.AvailabilityStatus = "employed"
		} else {
			sc.Candidate.Certifications = nil
		}
		found[i] = sc
	}
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).Return(found, nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	assert.Equal(t, 12, res.TotalSearched)
	assert.Equal(t, 0, res.PassedFilter)
	assert.Empty(t, res.Matches)
	assert.Equal(t, match.MessageNoneEligible, res.Message)
	assert.NotEqual(t, match.MessageNoneSearched, res.Message)
	f.reranker.AssertNotCalled(t, "Rerank", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatch_EmployedNeverReturned(t *testing.T) {
	f := newFixture()
	employed := eligible("employed", 0.99)
	employed.Candidate.AvailabilityStatus = "employed"
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.ScoredCandidate{employed, eligible("ok", 0.6)}, nil)
	f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.MatchedBy(func(user string) bool {
		return !strings.Contains(user, "candidate_id: employed")
	})).Return(ranked("employed", "ok"), nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSearched)
	assert.Equal(t, 1, res.PassedFilter)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "ok", res.Matches[0].Candidate.ID)
	f.reranker.AssertExpectations(t)
}

func TestMatch_UnknownIDsDropped(t *testing.T) {
	f := newFixture()
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.ScoredCandidate{eligible("a", 0.9), eligible("b", 0.8)}, nil)
	f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
		Return(ranked("b", "ghost", "a", "b"), nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "b", res.Matches[0].Candidate.ID, "model order is kept")
	assert.Equal(t, 0.8, res.Matches[0].Similarity)
	assert.Equal(t, 95.0, res.Matches[0].MatchScore)
	assert.Equal(t, "a", res.Matches[1].Candidate.ID)
	assert.Equal(t, 2, res.Returned)
	assert.Empty(t, res.Message)
}

func TestMatch_OverFetchCapAndTruncate(t *testing.T) {
	f := newFixture()
	var found []domain.ScoredCandidate
	for i := 0; i < 6; i++ {
		found = append(found, eligible(fmt.Sprintf("c%d", i), 0.9-float64(i)/100))
	}
	threshold := 0.7
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, profile.SearchQuery{
		Threshold:            0.7,
		Limit:                6,
		VerificationTiers:    []string{"verified"},
		AvailabilityStatuses: nil,
	}).Return(found, nil)
	f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.MatchedBy(func(user string) bool {
		return strings.Contains(user, "candidate_id: c3") && !strings.Contains(user, "candidate_id: c4")
	})).Return(ranked("c3", "c2", "c1", "c0"), nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{
		Limit:               2,
		SimilarityThreshold: &threshold,
		VerificationTiers:   []string{"verified"},
	})

	require.NoError(t, err)
	assert.Equal(t, 6, res.TotalSearched)
	assert.Equal(t, 6, res.PassedFilter)
	assert.Equal(t, 2, res.Returned)
	assert.Equal(t, "c3", res.Matches[0].Candidate.ID)
	assert.Equal(t, "c2", res.Matches[1].Candidate.ID)
	f.searcher.AssertExpectations(t)
	f.reranker.AssertExpectations(t)
}

func TestMatch_NoneRanked(t *testing.T) {
	f := newFixture()
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.ScoredCandidate{eligible("a", 0.9)}, nil)
	f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return([]match.RankedCandidate{}, nil)

	res, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.PassedFilter)
	assert.Empty(t, res.Matches)
	assert.Equal(t, match.MessageNoneRanked, res.Message)
}

func TestMatch_UsesStoredEmbedding(t *testing.T) {
	f := newFixture()
	opp := brief()
	opp.Embedding = domain.Embedding{Vector: []float32{0.4, 0.5}, Text: "stored"}
	f.searcher.On("SearchCandidates", mock.Anything, []float32{0.4, 0.5}, mock.Anything).Return([]domain.ScoredCandidate{}, nil)

	_, err := f.orch.Match(context.Background(), opp, match.Options{})

	require.NoError(t, err)
	f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestMatch_QueryTextFromStructuredFields(t *testing.T) {
	f := newFixture()
	f.embedder.On("Embed", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Position: Deckhand") &&
			strings.Contains(text, "Region: Mediterranean") &&
			strings.Contains(text, "Certification required: STCW")
	})).Return([]float32{0.1}, nil)
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ScoredCandidate{}, nil)

	_, err := f.orch.Match(context.Background(), brief(), match.Options{})

	require.NoError(t, err)
	f.embedder.AssertExpectations(t)
}

func TestMatch_Failures(t *testing.T) {
	t.Run("embedding provider", func(t *testing.T) {
		f := newFixture()
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		res, err := f.orch.Match(context.Background(), brief(), match.Options{})

		assert.Nil(t, res)
		assert.ErrorIs(t, err, apperr.ErrEmbeddingProvider)
		f.searcher.AssertNotCalled(t, "SearchCandidates", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("llm provider", func(t *testing.T) {
		f := newFixture()
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
			Return([]domain.ScoredCandidate{eligible("a", 0.9)}, nil)
		f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("503"))

		res, err := f.orch.Match(context.Background(), brief(), match.Options{})

		assert.Nil(t, res)
		assert.ErrorIs(t, err, apperr.ErrLLMProvider)
	})

	t.Run("unparsable ranking", func(t *testing.T) {
		f := newFixture()
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
			Return([]domain.ScoredCandidate{eligible("a", 0.9)}, nil)
		f.reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperr.NewParseError("nope", errors.New("invalid character")))

		res, err := f.orch.Match(context.Background(), brief(), match.Options{})

		assert.Nil(t, res)
		assert.ErrorIs(t, err, apperr.ErrParse)
		assert.NotErrorIs(t, err, apperr.ErrLLMProvider)
	})

	t.Run("search", func(t *testing.T) {
		f := newFixture()
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		res, err := f.orch.Match(context.Background(), brief(), match.Options{})

		assert.Nil(t, res)
		assert.Error(t, err)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture()
		bad := 1.5

		_, err := f.orch.Match(context.Background(), domain.Opportunity{}, match.Options{})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = f.orch.Match(context.Background(), brief(), match.Options{SimilarityThreshold: &bad})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestMatch_LimitDefaultsAndClamp(t *testing.T) {
	tests := []struct {
		limit     int
		wantFetch int
	}{
		{0, match.DefaultLimit * 3},
		{-4, match.DefaultLimit * 3},
		{500, match.MaxLimit * 3},
	}
	for _, tt := range tests {
		f := newFixture()
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.MatchedBy(func(q profile.SearchQuery) bool {
			return q.Limit == tt.wantFetch && q.Threshold == match.DefaultThreshold
		})).Return([]domain.ScoredCandidate{}, nil)

		_, err := f.orch.Match(context.Background(), brief(), match.Options{Limit: tt.limit})

		require.NoError(t, err)
		f.searcher.AssertExpectations(t)
	}
}

func TestMatch_WritesLogEntry(t *testing.T) {
	f := newFixture()
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	employed := eligible("x", 0.9)
	employed.Candidate.AvailabilityStatus = "employed"
	f.searcher.On("SearchCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.ScoredCandidate{employed}, nil)

	_, err := f.orch.Match(context.Background(), brief(), match.Options{})
	require.NoError(t, err)

	var entry match.LogEntry
	require.NoError(t, json.NewDecoder(f.logs).Decode(&entry))
	assert.Equal(t, "j1", entry.OpportunityID)
	assert.Equal(t, 1, entry.TotalSearched)
	assert.Equal(t, 0, entry.PassedFilter)
	assert.Equal(t, map[string]int{match.ReasonAvailability: 1}, entry.Rejected)
}

package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crewmatch/apps/backend/features/profile"
	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/embedtext"
	"crewmatch/apps/backend/internal/middleware"
)

type Orchestrator struct {
	embedder    Embedder
	searcher    CandidateSearcher
	reranker    Reranker
	shortlister Shortlister
	builder     *embedtext.Builder
	timeout     time.Duration
	logger      *Logger
}

func NewOrchestrator(e Embedder, s CandidateSearcher, r Reranker, timeout time.Duration, l *Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		embedder: e,
		searcher: s,
		reranker: r,
		builder:  embedtext.NewBuilder(0),
		timeout:  timeout,
		logger:   l,
	}
}

// QueryText is the text embedded for an opportunity without a stored vector.
func (o *Orchestrator) QueryText(opp domain.Opportunity) string {
	return o.builder.Opportunity(opp)
}

// Match returns the best candidates for opp. Provider failures abort the
// request; an empty match list is only returned for the zero-candidate
// outcomes, each with its own message.
func (o *Orchestrator) Match(ctx context.Context, opp domain.Opportunity, opts Options) (*Result, error) {
	start := time.Now()
	res, rejected, err := o.match(ctx, opp, opts)
	if err != nil {
		return nil, err
	}
	o.log(ctx, opp, res, rejected, time.Since(start))
	return res, nil
}

func (o *Orchestrator) match(ctx context.Context, opp domain.Opportunity, opts Options) (*Result, map[string]int, error) {
	if err := opp.Validate(); err != nil {
		return nil, nil, err
	}
	limit := clampLimit(opts.Limit)
	threshold := DefaultThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, nil, apperr.Validation("similarity_threshold must be between 0 and 1")
	}

	vec := opp.Embedding.Vector
	if !opp.Embedding.Present() {
		var err error
		if vec, err = o.embed(ctx, o.QueryText(opp)); err != nil {
			return nil, nil, err
		}
	}

	found, err := o.searcher.SearchCandidates(ctx, vec, profile.SearchQuery{
		Threshold:            threshold,
		Limit:                limit * searchFactor,
		VerificationTiers:    opts.VerificationTiers,
		AvailabilityStatuses: opts.AvailabilityStatuses,
	})
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Matches: []Match{}, TotalSearched: len(found)}
	passed, rejected := Filter(found, opp.Requirements)
	res.PassedFilter = len(passed)

	switch {
	case res.TotalSearched == 0:
		res.Message = MessageNoneSearched
		return res, rejected, nil
	case res.PassedFilter == 0:
		res.Message = MessageNoneEligible
		return res, rejected, nil
	}

	passed = o.shortlist(ctx, opp, passed, limit*rerankFactor)
	ranked, err := o.rerank(ctx, opp, passed)
	if err != nil {
		return nil, nil, err
	}

	res.Matches = assemble(ranked, passed, limit)
	res.Returned = len(res.Matches)
	if res.Returned == 0 {
		res.Message = MessageNoneRanked
	}
	return res, rejected, nil
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperr.EmbeddingProvider(err)
	}
	if len(vec) == 0 {
		return nil, apperr.EmbeddingProvider(errors.New("empty vector"))
	}
	return vec, nil
}

func (o *Orchestrator) rerank(ctx context.Context, opp domain.Opportunity, candidates []domain.ScoredCandidate) ([]RankedCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	system, user := BuildPrompt(opp, candidates)
	ranked, err := o.reranker.Rerank(ctx, system, user)
	if err != nil {
		if !errors.Is(err, apperr.ErrLLMProvider) && !errors.Is(err, apperr.ErrParse) {
			err = apperr.LLMProvider(err)
		}
		return nil, err
	}
	return ranked, nil
}

// assemble maps ranked ids back to the submitted candidates in the order the
// model returned them. Unknown and repeated ids are dropped.
func assemble(ranked []RankedCandidate, submitted []domain.ScoredCandidate, limit int) []Match {
	byID := make(map[string]domain.ScoredCandidate, len(submitted))
	for _, sc := range submitted {
		byID[sc.Candidate.ID] = sc
	}

	out := make([]Match, 0, limit)
	seen := make(map[string]struct{}, len(ranked))
	for _, rc := range ranked {
		sc, ok := byID[rc.CandidateID]
		if !ok {
			continue
		}
		if _, dup := seen[rc.CandidateID]; dup {
			continue
		}
		seen[rc.CandidateID] = struct{}{}
		out = append(out, Match{
			Candidate:  sc.Candidate,
			Similarity: sc.Similarity,
			MatchScore: rc.MatchScore,
			Strengths:  rc.Strengths,
			Concerns:   rc.Concerns,
			Summary:    rc.Summary,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func (o *Orchestrator) log(ctx context.Context, opp domain.Opportunity, res *Result, rejected map[string]int, d time.Duration) {
	slog.InfoContext(ctx, "match completed",
		"opportunity_id", opp.ID,
		"total_searched", res.TotalSearched,
		"passed_filter", res.PassedFilter,
		"returned", res.Returned,
		"duration", d)
	if o.logger == nil {
		return
	}
	o.logger.Log(LogEntry{
		OpportunityID: opp.ID,
		Title:         opp.Title,
		TotalSearched: res.TotalSearched,
		PassedFilter:  res.PassedFilter,
		Returned:      res.Returned,
		Rejected:      rejected,
		Duration:      d,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
}

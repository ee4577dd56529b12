package match

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
	"crewmatch/apps/backend/internal/embedtext"
)

const rerankSystemPrompt = `You are a senior yacht crew recruiter. Score each candidate against the opportunity.

Scoring rubric:
- 90-100: exceptional fit, exceeds the requirements
- 80-89: strong fit, meets every requirement with relevant experience
- 70-79: good fit, minor gaps
- 60-69: adequate, noticeable gaps
- below 60: significant gaps

Hard requirements (certifications, visas, minimum experience, availability, non-smoker, no visible tattoos) are deal-breakers. A candidate failing one must score below 60.

Respond with a JSON array only, best match first:
[{"candidate_id": "...", "match_score": 0, "strengths": ["..."], "concerns": ["..."], "summary": "..."}]`

// BuildPrompt renders the user prompt for a re-rank call. Candidates are
// listed in the order given.
func BuildPrompt(o domain.Opportunity, candidates []domain.ScoredCandidate) (system, user string) {
	var b strings.Builder
	b.WriteString("# Opportunity\n")
	b.WriteString(embedtext.NewBuilder(0).Opportunity(o))
	b.WriteString("\n\n# Hard requirements\n")
	if phrases := embedtext.RequirementPhrases(o.Requirements); len(phrases) > 0 {
		for _, p := range phrases {
			b.WriteString("- " + p + "\n")
		}
	} else {
		b.WriteString("- none stated\n")
	}
	b.WriteString("\n# Candidates\n")
	for _, sc := range candidates {
		b.WriteString("\n")
		b.WriteString(candidateSummary(sc))
	}
	return rerankSystemPrompt, b.String()
}

func candidateSummary(sc domain.ScoredCandidate) string {
	c := sc.Candidate
	var lines []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("candidate_id", c.ID)
	add("similarity", strconv.FormatFloat(sc.Similarity, 'f', 3, 64))
	add("position", c.PrimaryPosition)
	add("secondary positions", strings.Join(c.SecondaryPositions, ", "))
	if c.YearsExperience != nil {
		add("years experience", strconv.Itoa(*c.YearsExperience))
	}
	add("certifications", strings.Join(c.Certifications, ", "))
	add("visas", strings.Join(c.Visas, ", "))
	add("availability", c.AvailabilityStatus)
	add("preferred regions", strings.Join(c.PreferredRegions, ", "))
	add("yacht types", strings.Join(c.YachtTypes, ", "))
	add("verification", c.VerificationTier)
	add("summary", c.Summary)
	return "- " + strings.Join(lines, "\n  ") + "\n"
}

var fence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// ParseRanking decodes the model output. A fenced code block is unwrapped
// first; anything that is not then a JSON array of rankings is a
// *apperr.ParseError.
func ParseRanking(raw string) ([]RankedCandidate, error) {
	body := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if body == "" {
		return nil, apperr.NewParseError(raw, fmt.Errorf("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var out []RankedCandidate
	if err := dec.Decode(&out); err != nil {
		return nil, apperr.NewParseError(raw, err)
	}
	if dec.More() {
		return nil, apperr.NewParseError(raw, fmt.Errorf("trailing data after array"))
	}
	return out, nil
}

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMReranker asks a chat model to score candidates.
type LLMReranker struct {
	llm Completer
}

func NewLLMReranker(llm Completer) *LLMReranker {
	return &LLMReranker{llm: llm}
}

func (r *LLMReranker) Rerank(ctx context.Context, systemPrompt, userPrompt string) ([]RankedCandidate, error) {
	raw, err := r.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, apperr.LLMProvider(err)
	}
	return ParseRanking(raw)
}

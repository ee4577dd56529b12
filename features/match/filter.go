package match

import (
	"strings"

	"crewmatch/apps/backend/internal/domain"
)

// Rejection reasons reported by Eligible.
const (
	ReasonAvailability  = "availability"
	ReasonCertification = "certification"
	ReasonVisa          = "visa"
	ReasonExperience    = "experience"
	ReasonSmoker        = "smoker"
	ReasonTattoos       = "tattoos"
)

// Eligible applies the hard requirements of r to c. It returns "" when c
// passes, otherwise the first failed condition. Availability must be one of
// the canonical eligible statuses; free text is folded at import, not here.
// Unknown experience fails a stated minimum; unknown smoker or tattoo status
// does not exclude.
func Eligible(c domain.Candidate, r domain.Requirements) string {
	switch strings.ToLower(strings.TrimSpace(c.AvailabilityStatus)) {
	case domain.AvailabilityAvailable, domain.AvailabilityLooking:
	default:
		return ReasonAvailability
	}
	if !hasAll(c.Certifications, r.Certifications) {
		return ReasonCertification
	}
	if !hasAll(c.Visas, r.Visas) {
		return ReasonVisa
	}
	if least := r.MinYearsExperience; least != nil && *least > 0 {
		if c.YearsExperience == nil || *c.YearsExperience < *least {
			return ReasonExperience
		}
	}
	if r.NonSmoker && c.IsSmoker != nil && *c.IsSmoker {
		return ReasonSmoker
	}
	if r.NoVisibleTattoos && c.HasVisibleTattoos != nil && *c.HasVisibleTattoos {
		return ReasonTattoos
	}
	return ""
}

// Filter keeps the candidates that pass Eligible, in input order, and
// counts rejections by reason.
func Filter(in []domain.ScoredCandidate, r domain.Requirements) ([]domain.ScoredCandidate, map[string]int) {
	out := make([]domain.ScoredCandidate, 0, len(in))
	rejected := map[string]int{}
	for _, sc := range in {
		if reason := Eligible(sc.Candidate, r); reason != "" {
			rejected[reason]++
			continue
		}
		out = append(out, sc)
	}
	return out, rejected
}

func hasAll(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(held))
	for _, h := range held {
		have[domain.NormalizeCredential(h)] = struct{}{}
	}
	for _, req := range required {
		key := domain.NormalizeCredential(req)
		if key == "" {
			continue
		}
		if _, ok := have[key]; !ok {
			return false
		}
	}
	return true
}

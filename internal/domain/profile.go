// Package domain holds the profile records the pipeline reads and the
// embedding values it writes back.
package domain

import (
	"strings"
	"time"
	"unicode"

	"crewmatch/apps/backend/internal/apperr"
)

type EntityType string

const (
	EntityCandidate  EntityType = "candidate"
	EntityJob        EntityType = "job"
	EntityCVDocument EntityType = "cv_document"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityCandidate, EntityJob, EntityCVDocument:
		return true
	}
	return false
}

const (
	AvailabilityAvailable   = "available"
	AvailabilityLooking     = "looking"
	AvailabilityEmployed    = "employed"
	AvailabilityUnavailable = "unavailable"
)

// Candidate is a crew member profile. Pointer fields are unknown when nil.
type Candidate struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	PrimaryPosition    string     `json:"primary_position"`
	SecondaryPositions []string   `json:"secondary_positions,omitempty"`
	PositionCategory   string     `json:"position_category,omitempty"`
	YearsExperience    *int       `json:"years_experience,omitempty"`
	Nationality        string     `json:"nationality,omitempty"`
	Certifications     []string   `json:"certifications,omitempty"`
	HighestLicense     string     `json:"highest_license,omitempty"`
	Visas              []string   `json:"visas,omitempty"`
	PreferredRegions   []string   `json:"preferred_regions,omitempty"`
	ContractTypes      []string   `json:"contract_types,omitempty"`
	YachtTypes         []string   `json:"yacht_types,omitempty"`
	YachtSizeMin       *int       `json:"yacht_size_min,omitempty"`
	YachtSizeMax       *int       `json:"yacht_size_max,omitempty"`
	SalaryMin          *int       `json:"salary_min,omitempty"`
	SalaryMax          *int       `json:"salary_max,omitempty"`
	SalaryCurrency     string     `json:"salary_currency,omitempty"`
	IsSmoker           *bool      `json:"is_smoker,omitempty"`
	HasVisibleTattoos  *bool      `json:"has_visible_tattoos,omitempty"`
	IsCouple           bool       `json:"is_couple,omitempty"`
	AvailabilityStatus string     `json:"availability_status"`
	AvailableFrom      *time.Time `json:"available_from,omitempty"`
	VerificationTier   string     `json:"verification_tier,omitempty"`
	Summary            string     `json:"summary,omitempty"`

	Embedding Embedding `json:"-"`
}

// SoughtPositions lists the primary position followed by secondary ones.
func (c *Candidate) SoughtPositions() []string {
	out := make([]string, 0, 1+len(c.SecondaryPositions))
	if c.PrimaryPosition != "" {
		out = append(out, c.PrimaryPosition)
	}
	return append(out, c.SecondaryPositions...)
}

func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return apperr.Validation("candidate id is required")
	}
	if c.YearsExperience != nil && *c.YearsExperience < 0 {
		return apperr.Validation("candidate %s: years_experience must not be negative", c.ID)
	}
	if c.SalaryMin != nil && c.SalaryMax != nil && *c.SalaryMin > *c.SalaryMax {
		return apperr.Validation("candidate %s: salary_min exceeds salary_max", c.ID)
	}
	c.AvailabilityStatus = NormalizeAvailability(c.AvailabilityStatus)
	return nil
}

// Requirements are the hard conditions attached to an opportunity.
type Requirements struct {
	MinYearsExperience *int     `json:"min_years_experience,omitempty"`
	Certifications     []string `json:"certifications,omitempty"`
	Visas              []string `json:"visas,omitempty"`
	NonSmoker          bool     `json:"non_smoker,omitempty"`
	NoVisibleTattoos   bool     `json:"no_visible_tattoos,omitempty"`
	Languages          []string `json:"languages,omitempty"`
}

// Opportunity is a job listing or a structured hiring brief.
type Opportunity struct {
	ID            string       `json:"id,omitempty"`
	Title         string       `json:"title"`
	VesselName    string       `json:"vessel_name,omitempty"`
	VesselType    string       `json:"vessel_type,omitempty"`
	VesselSize    *int         `json:"vessel_size,omitempty"`
	ContractType  string       `json:"contract_type,omitempty"`
	PrimaryRegion string       `json:"primary_region,omitempty"`
	SalaryMin     *int         `json:"salary_min,omitempty"`
	SalaryMax     *int         `json:"salary_max,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	Description   string       `json:"description,omitempty"`
	Requirements  Requirements `json:"requirements"`
	Status        string       `json:"status,omitempty"`
	PublishedAt   time.Time    `json:"published_at,omitempty"`

	Embedding Embedding `json:"-"`
}

func (o *Opportunity) Validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return apperr.Validation("opportunity title is required")
	}
	if o.Requirements.MinYearsExperience != nil && *o.Requirements.MinYearsExperience < 0 {
		return apperr.Validation("min_years_experience must not be negative")
	}
	return nil
}

// Embedding is a stored vector together with the text it was computed from.
type Embedding struct {
	Vector    []float32
	Text      string
	UpdatedAt *time.Time
}

func (e Embedding) Present() bool { return len(e.Vector) > 0 }

// Fresh reports whether the stored vector was produced from text.
func (e Embedding) Fresh(text string) bool {
	return e.Present() && e.Text == text
}

// CandidateHit is a vector index hit before the candidate row is loaded.
type CandidateHit struct {
	ID         string
	Similarity float64
}

// ScoredCandidate is a vector search hit.
type ScoredCandidate struct {
	Candidate  Candidate
	Similarity float64
}

// NormalizeAvailability folds free-text availability values onto the
// canonical statuses. Negations are checked before the positive keywords.
// Unknown values are returned lowercased.
func NormalizeAvailability(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case lower == "":
		return ""
	case containsAny(lower, "not available", "unavailable", "not looking", "no longer", "inactive"):
		return AvailabilityUnavailable
	case strings.Contains(lower, "unemployed"):
		return AvailabilityAvailable
	case containsAny(lower, "employed", "working"):
		return AvailabilityEmployed
	case strings.Contains(lower, "looking"):
		return AvailabilityLooking
	case strings.Contains(lower, "available"), hasWord(lower, "active"), hasWord(lower, "actively"):
		return AvailabilityAvailable
	}
	return lower
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if f == word {
			return true
		}
	}
	return false
}

// NormalizeCredential canonicalises certificate and visa names so that
// "B1/B2", "b1-b2" and "B1 B2" compare equal.
func NormalizeCredential(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package domain

import (
	"strings"
	"time"
)

// Visibility controls which audience may see a piece of text.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityClient    Visibility = "client"
	VisibilityRecruiter Visibility = "recruiter"
)

func (v Visibility) rank() int {
	switch v {
	case VisibilityPublic:
		return 0
	case VisibilityClient:
		return 1
	case VisibilityRecruiter:
		return 2
	}
	return -1
}

func (v Visibility) Valid() bool { return v.rank() >= 0 }

// Allows reports whether an audience at level v may read text tagged tag.
// Unknown tags are treated as recruiter-only.
func (v Visibility) Allows(tag Visibility) bool {
	t := tag.rank()
	if t < 0 {
		t = VisibilityRecruiter.rank()
	}
	return v.rank() >= t
}

const DocumentTypeCV = "cv"

type Document struct {
	ID            string     `json:"id"`
	CandidateID   string     `json:"candidate_id"`
	Type          string     `json:"type"`
	Name          string     `json:"name"`
	Visibility    Visibility `json:"visibility"`
	ExtractedText string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (d *Document) IsCV() bool {
	return strings.EqualFold(strings.TrimSpace(d.Type), DocumentTypeCV)
}

type InterviewNote struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Content            string     `json:"content"`
	Visibility         Visibility `json:"visibility"`
	IncludeInEmbedding bool       `json:"include_in_embedding"`
	CreatedAt          time.Time  `json:"created_at"`
}

type Reference struct {
	ID           string     `json:"id"`
	RefereeName  string     `json:"referee_name"`
	Relationship string     `json:"relationship"`
	VesselName   string     `json:"vessel_name,omitempty"`
	Feedback     string     `json:"feedback"`
	Rating       *int       `json:"rating,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	Visibility   Visibility `json:"visibility"`
}

// CandidateBundle is everything the text builder reads for one candidate.
type CandidateBundle struct {
	Candidate  Candidate
	Documents  []Document
	Notes      []InterviewNote
	References []Reference
}

// CVChunkRecord is a persisted chunk of a CV document.
type CVChunkRecord struct {
	DocumentID    string
	ChunkIndex    int
	Text          string
	StartOffset   int
	EndOffset     int
	SectionType   string
	SectionWeight float64
	Vector        []float32
}

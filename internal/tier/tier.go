// Package tier buckets job listings for a candidate without embeddings:
// 1 = position match, 2 = same department, 3 = unrelated.
package tier

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

type Tier int

const (
	TierMatch      Tier = 1
	TierDepartment Tier = 2
	TierOther      Tier = 3
)

type MatchLevel string

const (
	LevelMatch MatchLevel = "match"
	LevelNone  MatchLevel = "none"
)

// NormalizePosition lowercases s, replaces every run of characters that are
// neither letters nor digits with a single underscore and trims underscores
// from both ends.
func NormalizePosition(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Level reports whether any sought position matches the job title: equal
// normalized forms, or either containing the other.
func Level(jobTitle string, sought []string) MatchLevel {
	title := NormalizePosition(jobTitle)
	if title == "" {
		return LevelNone
	}
	for _, s := range sought {
		pos := NormalizePosition(s)
		if pos == "" {
			continue
		}
		if pos == title || strings.Contains(title, pos) || strings.Contains(pos, title) {
			return LevelMatch
		}
	}
	return LevelNone
}

// Classify returns the relevance tier of jobTitle for a candidate seeking
// the given positions.
func Classify(jobTitle string, sought []string) Tier {
	if Level(jobTitle, sought) == LevelMatch {
		return TierMatch
	}
	dept := DepartmentOf(jobTitle)
	if dept == "" {
		return TierOther
	}
	for _, s := range sought {
		if DepartmentOf(s) == dept {
			return TierDepartment
		}
	}
	return TierOther
}

// Listing is a classified job listing.
type Listing struct {
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Tier        Tier      `json:"tier"`
}

// Rank classifies every listing against sought and orders them tier
// ascending, then most recently published first.
func Rank(listings []Listing, sought []string) []Listing {
	out := make([]Listing, len(listings))
	copy(out, listings)
	for i := range out {
		out[i].Tier = Classify(out[i].Title, sought)
	}
	Sort(out)
	return out
}

func Sort(listings []Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		if listings[i].Tier != listings[j].Tier {
			return listings[i].Tier < listings[j].Tier
		}
		return listings[i].PublishedAt.After(listings[j].PublishedAt)
	})
}

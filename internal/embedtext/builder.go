// Package embedtext renders profiles into the deterministic text blobs that
// are sent to the embedding provider. Output for identical input is
// byte-identical so callers can detect changes by comparing strings.
package embedtext

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"crewmatch/apps/backend/internal/domain"
)

// DefaultMaxChars keeps rendered text inside the input window of the
// embedding models we use (roughly 8k tokens).
const DefaultMaxChars = 24000

const (
	weightProfile      = 1.0
	weightRequirements = 0.9
	weightDocuments    = 0.7
	weightDescription  = 0.6
	weightNotes        = 0.5
	weightReferences   = 0.4
)

type section struct {
	title   string
	weight  float64
	body    string
	dropped bool
}

type Builder struct {
	maxChars int
}

func NewBuilder(maxChars int) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Builder{maxChars: maxChars}
}

// Candidate renders the profile, documents, embeddable notes and verified
// references visible at vis, in that order.
func (b *Builder) Candidate(bundle domain.CandidateBundle, vis domain.Visibility) string {
	sections := []section{
		{title: "Profile", weight: weightProfile, body: candidateProfile(&bundle.Candidate, vis)},
		{title: "Documents", weight: weightDocuments, body: documents(bundle.Documents, vis)},
		{title: "Interview notes", weight: weightNotes, body: notes(bundle.Notes, vis)},
		{title: "References", weight: weightReferences, body: references(bundle.References, vis)},
	}
	return render(fit(sections, b.maxChars))
}

// Opportunity renders the structured fields of a job or brief. It is used
// both for stored job embeddings and for ad-hoc match queries.
func (b *Builder) Opportunity(o domain.Opportunity) string {
	sections := []section{
		{title: "Opportunity", weight: weightProfile, body: opportunityOverview(&o)},
		{title: "Requirements", weight: weightRequirements, body: strings.Join(RequirementPhrases(o.Requirements), "\n")},
		{title: "Description", weight: weightDescription, body: clean(o.Description)},
	}
	return render(fit(sections, b.maxChars))
}

// RequirementPhrases renders hard requirements as short phrases.
func RequirementPhrases(r domain.Requirements) []string {
	var out []string
	if r.MinYearsExperience != nil && *r.MinYearsExperience > 0 {
		out = append(out, "Minimum "+strconv.Itoa(*r.MinYearsExperience)+" years experience")
	}
	for _, c := range r.Certifications {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, "Certification required: "+c)
		}
	}
	for _, v := range r.Visas {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, "Visa required: "+v)
		}
	}
	if r.NonSmoker {
		out = append(out, "Non-smoker")
	}
	if r.NoVisibleTattoos {
		out = append(out, "No visible tattoos")
	}
	for _, l := range r.Languages {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, "Language: "+l)
		}
	}
	return out
}

func candidateProfile(c *domain.Candidate, vis domain.Visibility) string {
	var f fields
	if vis == domain.VisibilityRecruiter {
		f.add("Name", strings.TrimSpace(c.FirstName+" "+c.LastName))
	}
	f.add("Position", c.PrimaryPosition)
	f.list("Secondary positions", c.SecondaryPositions)
	f.add("Department", c.PositionCategory)
	if c.YearsExperience != nil {
		f.add("Experience", strconv.Itoa(*c.YearsExperience)+" years")
	}
	if vis.Allows(domain.VisibilityClient) {
		f.add("Nationality", c.Nationality)
	}
	f.list("Certifications", c.Certifications)
	f.add("Highest license", c.HighestLicense)
	f.list("Visas", c.Visas)
	f.list("Preferred regions", c.PreferredRegions)
	f.list("Contract types", c.ContractTypes)
	f.list("Yacht types", c.YachtTypes)
	f.add("Yacht size", span(c.YachtSizeMin, c.YachtSizeMax, "m"))
	if vis.Allows(domain.VisibilityClient) {
		f.add("Salary expectation", span(c.SalaryMin, c.SalaryMax, " "+c.SalaryCurrency))
		f.flag("Smoker", c.IsSmoker)
		f.flag("Visible tattoos", c.HasVisibleTattoos)
		if c.IsCouple {
			f.add("Couple", "yes")
		}
	}
	availability := c.AvailabilityStatus
	if c.AvailableFrom != nil {
		availability = strings.TrimSpace(availability + " from " + c.AvailableFrom.Format("2006-01-02"))
	}
	f.add("Availability", availability)
	f.add("Summary", clean(c.Summary))
	return f.String()
}

func opportunityOverview(o *domain.Opportunity) string {
	var f fields
	f.add("Position", o.Title)
	vessel := o.VesselName
	var details []string
	if o.VesselType != "" {
		details = append(details, o.VesselType)
	}
	if o.VesselSize != nil {
		details = append(details, strconv.Itoa(*o.VesselSize)+"m")
	}
	if len(details) > 0 {
		vessel = strings.TrimSpace(vessel + " (" + strings.Join(details, ", ") + ")")
	}
	f.add("Vessel", vessel)
	f.add("Contract", o.ContractType)
	f.add("Region", o.PrimaryRegion)
	f.add("Salary", span(o.SalaryMin, o.SalaryMax, " "+o.Currency))
	if o.StartDate != nil {
		f.add("Start date", o.StartDate.Format("2006-01-02"))
	}
	return f.String()
}

func documents(docs []domain.Document, vis domain.Visibility) string {
	var parts []string
	for _, d := range docs {
		text := clean(d.ExtractedText)
		if text == "" || !vis.Allows(d.Visibility) {
			continue
		}
		header := "Document (" + strings.ToLower(strings.TrimSpace(d.Type)) + ")"
		if name := strings.TrimSpace(d.Name); name != "" {
			header += " " + name
		}
		parts = append(parts, header+":\n"+text)
	}
	return strings.Join(parts, "\n\n")
}

func notes(list []domain.InterviewNote, vis domain.Visibility) string {
	var parts []string
	for _, n := range list {
		content := clean(n.Content)
		if !n.IncludeInEmbedding || content == "" || !vis.Allows(n.Visibility) {
			continue
		}
		if title := strings.TrimSpace(n.Title); title != "" {
			content = title + ":\n" + content
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}

func references(list []domain.Reference, vis domain.Visibility) string {
	var parts []string
	for _, r := range list {
		feedback := clean(r.Feedback)
		if !r.IsVerified || feedback == "" || !vis.Allows(r.Visibility) {
			continue
		}
		var who []string
		if r.Relationship != "" {
			who = append(who, r.Relationship)
		}
		if r.VesselName != "" {
			who = append(who, r.VesselName)
		}
		line := "Reference"
		if vis.Allows(domain.VisibilityClient) && r.RefereeName != "" {
			line += " from " + r.RefereeName
		}
		if len(who) > 0 {
			line += " (" + strings.Join(who, ", ") + ")"
		}
		line += ": " + feedback
		if r.Rating != nil {
			line += " Rating " + strconv.Itoa(*r.Rating) + "/5."
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

// fit drops or shortens sections, lowest weight first, until the rendered
// text is at most limit characters. Later sections lose ties.
func fit(sections []section, limit int) []section {
	if len(render(sections)) <= limit {
		return sections
	}
	order := make([]int, len(sections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		wa, wb := sections[order[a]].weight, sections[order[b]].weight
		if wa != wb {
			return wa < wb
		}
		return order[a] > order[b]
	})

	for _, i := range order {
		over := len(render(sections)) - limit
		if over <= 0 {
			break
		}
		body := sections[i].body
		if body == "" {
			continue
		}
		if cut := boundaryBefore(body, len(body)-over); cut > 0 {
			sections[i].body = strings.TrimRightFunc(body[:cut], unicode.IsSpace)
			break
		}
		sections[i].dropped = true
	}
	return sections
}

// boundaryBefore returns the largest cut point <= limit that ends a sentence,
// falling back to the last whitespace. Zero means no safe cut exists.
func boundaryBefore(s string, limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > len(s) {
		limit = len(s)
	}
	for i := limit - 1; i > 0; i-- {
		switch s[i] {
		case '\n':
			return i
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return i + 1
			}
		}
	}
	if i := strings.LastIndexAny(s[:limit], " \t"); i > 0 {
		return i
	}
	return 0
}

func render(sections []section) string {
	var parts []string
	for _, s := range sections {
		if s.dropped || s.body == "" {
			continue
		}
		parts = append(parts, "## "+s.title+"\n"+s.body)
	}
	return strings.Join(parts, "\n\n")
}

// clean normalises line endings and trims each line.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func span(lo, hi *int, unit string) string {
	unit = strings.TrimRight(unit, " ")
	switch {
	case lo != nil && hi != nil && *lo != *hi:
		return strconv.Itoa(*lo) + "-" + strconv.Itoa(*hi) + unit
	case lo != nil:
		return strconv.Itoa(*lo) + unit
	case hi != nil:
		return "up to " + strconv.Itoa(*hi) + unit
	}
	return ""
}

type fields struct {
	lines []string
}

func (f *fields) add(label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		f.lines = append(f.lines, label+": "+value)
	}
}

func (f *fields) list(label string, values []string) {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	f.add(label, strings.Join(kept, ", "))
}

func (f *fields) flag(label string, v *bool) {
	if v == nil {
		return
	}
	if *v {
		f.add(label, "yes")
	} else {
		f.add(label, "no")
	}
}

func (f *fields) String() string { return strings.Join(f.lines, "\n") }

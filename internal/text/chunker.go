package text

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

type SectionType string

const (
	SectionSummary        SectionType = "summary"
	SectionExperience     SectionType = "experience"
	SectionSkills         SectionType = "skills"
	SectionEducation      SectionType = "education"
	SectionCertifications SectionType = "certifications"
	SectionOther          SectionType = "other"
)

var sectionWeights = map[SectionType]float64{
	SectionSummary:        1.3,
	SectionExperience:     1.2,
	SectionSkills:         1.1,
	SectionCertifications: 1.1,
	SectionEducation:      1.0,
	SectionOther:          0.9,
}

// SectionWeight returns the static ranking weight for a section type.
func SectionWeight(t SectionType) float64 {
	if w, ok := sectionWeights[t]; ok {
		return w
	}
	return sectionWeights[SectionOther]
}

// CVChunk is a bounded slice of a normalized CV. Offsets index into the
// normalized text, EndOffset exclusive.
type CVChunk struct {
	Text          string      `json:"text"`
	StartOffset   int         `json:"start_offset"`
	EndOffset     int         `json:"end_offset"`
	SectionType   SectionType `json:"section_type"`
	SectionWeight float64     `json:"section_weight"`
	ChunkIndex    int         `json:"chunk_index"`
}

type ChunkOptions struct {
	MaxChunkSize int
	MinChunkSize int
	OverlapSize  int
	MaxChunks    int
}

func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxChunkSize: 3200, MinChunkSize: 400, OverlapSize: 250, MaxChunks: 5}
}

func (o ChunkOptions) withDefaults() ChunkOptions {
	d := DefaultChunkOptions()
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = d.MaxChunkSize
	}
	if o.MinChunkSize <= 0 || o.MinChunkSize >= o.MaxChunkSize {
		o.MinChunkSize = o.MaxChunkSize / 8
	}
	if o.OverlapSize < 0 {
		o.OverlapSize = 0
	}
	if o.OverlapSize >= o.MinChunkSize {
		o.OverlapSize = o.MinChunkSize / 2
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = d.MaxChunks
	}
	return o
}

const headerDedupeDistance = 50

// Header lines only: the whole line must be the heading, optionally with a
// trailing colon.
var sectionHeaders = []struct {
	typ SectionType
	re  *regexp.Regexp
}{
	{SectionSummary, regexp.MustCompile(`(?im)^[ \t]*(?:(?:professional|personal|career)[ \t]+)?(?:summary|profile|objective)[ \t]*:?[ \t]*$`)},
	{SectionSummary, regexp.MustCompile(`(?im)^[ \t]*about[ \t]+me[ \t]*:?[ \t]*$`)},
	{SectionExperience, regexp.MustCompile(`(?im)^[ \t]*(?:(?:work|professional|yacht|yachting|maritime|relevant|previous)[ \t]+)?experience[ \t]*:?[ \t]*$`)},
	{SectionExperience, regexp.MustCompile(`(?im)^[ \t]*(?:(?:employment|career|work)[ \t]+history|employment|sea[ \t]+service|previous[ \t]+positions)[ \t]*:?[ \t]*$`)},
	{SectionSkills, regexp.MustCompile(`(?im)^[ \t]*(?:(?:key|core|technical|additional)[ \t]+)?(?:skills|competencies|abilities)[ \t]*:?[ \t]*$`)},
	{SectionSkills, regexp.MustCompile(`(?im)^[ \t]*languages?[ \t]*:?[ \t]*$`)},
	{SectionEducation, regexp.MustCompile(`(?im)^[ \t]*(?:education|academic[ \t]+background|schooling)(?:[ \t]+(?:&|and)[ \t]+training)?[ \t]*:?[ \t]*$`)},
	{SectionCertifications, regexp.MustCompile(`(?im)^[ \t]*(?:certifications?|certificates?|licen[cs]es?|qualifications|tickets|courses)(?:[ \t]+(?:&|and)[ \t]+(?:licen[cs]es|courses|training|certificates))?[ \t]*:?[ \t]*$`)},
}

var (
	experienceKeywords = []string{"yacht", "vessel", "m/y", "s/y", "captain", "deckhand", "stewardess", "steward", "engineer", "chef", "bosun", "crew", "charter", "galley"}
	summaryKeywords    = []string{"professional", "seeking", "years of", "motivated", "passionate", "dedicated"}
	skillsKeywords     = []string{"skills:", "proficient", "fluent", "competent in", "knowledge of"}

	sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)
	horizontalSpace  = regexp.MustCompile(`[ \t\f\v]+`)
	excessBlankLines = regexp.MustCompile(`\n{4,}`)
)

// Normalize unifies line endings, collapses horizontal whitespace, strips
// trailing spaces and keeps at most two consecutive blank lines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	s = strings.Join(lines, "\n")
	s = excessBlankLines.ReplaceAllString(s, "\n\n\n")
	return strings.TrimSpace(s)
}

// GuessSectionType classifies a block of CV text by keyword counts.
func GuessSectionType(s string) SectionType {
	lower := strings.ToLower(s)
	counts := []struct {
		typ SectionType
		n   int
	}{
		{SectionExperience, countKeywords(lower, experienceKeywords)},
		{SectionSummary, countKeywords(lower, summaryKeywords)},
		{SectionSkills, countKeywords(lower, skillsKeywords)},
	}
	best := SectionOther
	bestN := 0
	for _, c := range counts {
		if c.n > bestN {
			best, bestN = c.typ, c.n
		}
	}
	return best
}

func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		n += strings.Count(lower, k)
	}
	return n
}

type header struct {
	offset int
	typ    SectionType
}

type sectionSpan struct {
	start, end int
	typ        SectionType
}

func detectHeaders(text string) []header {
	var found []header
	for _, h := range sectionHeaders {
		for _, loc := range h.re.FindAllStringIndex(text, -1) {
			off := loc[0]
			for off < loc[1] && (text[off] == ' ' || text[off] == '\t') {
				off++
			}
			found = append(found, header{offset: off, typ: h.typ})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })

	var out []header
	for _, h := range found {
		if len(out) > 0 && h.offset-out[len(out)-1].offset < headerDedupeDistance {
			continue
		}
		out = append(out, h)
	}
	return out
}

func detectSections(text string) []sectionSpan {
	headers := detectHeaders(text)
	if len(headers) == 0 {
		return []sectionSpan{{start: 0, end: len(text), typ: GuessSectionType(text)}}
	}

	var spans []sectionSpan
	if pre := text[:headers[0].offset]; strings.TrimSpace(pre) != "" {
		typ := SectionOther
		if GuessSectionType(pre) == SectionSummary {
			typ = SectionSummary
		}
		spans = append(spans, sectionSpan{start: 0, end: headers[0].offset, typ: typ})
	}
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].offset
		}
		spans = append(spans, sectionSpan{start: h.offset, end: end, typ: h.typ})
	}
	return spans
}

// ChunkCV splits CV text into at most opts.MaxChunks section-aware chunks.
// Empty or whitespace-only input yields no chunks.
func ChunkCV(raw string, opts ChunkOptions) []CVChunk {
	opts = opts.withDefaults()
	text := Normalize(raw)
	if text == "" {
		return nil
	}

	if len(text) <= opts.MaxChunkSize {
		typ := GuessSectionType(text)
		return []CVChunk{{
			Text:          text,
			StartOffset:   0,
			EndOffset:     len(text),
			SectionType:   typ,
			SectionWeight: SectionWeight(typ),
		}}
	}

	var chunks []CVChunk
	for _, sec := range detectSections(text) {
		if len(chunks) >= opts.MaxChunks {
			break
		}
		chunks = appendSectionChunks(chunks, text, sec, opts)
	}

	if len(chunks) < 2 && float64(len(text)) > 1.5*float64(opts.MaxChunkSize) {
		chunks = slidingWindow(text, opts)
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}

func appendSectionChunks(chunks []CVChunk, text string, sec sectionSpan, opts ChunkOptions) []CVChunk {
	pos := sec.start
	for pos < sec.end && len(chunks) < opts.MaxChunks {
		if sec.end-pos <= opts.MaxChunkSize {
			return appendTrimmed(chunks, text, pos, sec.end, sec.typ)
		}

		end := splitPoint(text, pos, sec.end, opts)
		chunks = appendTrimmed(chunks, text, pos, end, sec.typ)

		next := end - opts.OverlapSize
		if next <= pos {
			next = end
		}
		if ws := strings.IndexAny(text[next:end], " \n"); ws >= 0 {
			next += ws + 1
		}
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		pos = next
	}
	return chunks
}

// splitPoint picks the chunk end for a window starting at pos: the last
// paragraph break at least MinChunkSize in, else the last sentence
// boundary, else a hard cut at MaxChunkSize.
func splitPoint(text string, pos, limit int, opts ChunkOptions) int {
	lo := pos + opts.MinChunkSize
	hi := pos + opts.MaxChunkSize
	if hi > limit {
		hi = limit
	}
	window := text[lo:hi]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i
	}
	if locs := sentenceBoundary.FindAllStringIndex(window, -1); len(locs) > 0 {
		return lo + locs[len(locs)-1][0] + 1
	}
	for hi > pos && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return hi
}

func slidingWindow(text string, opts ChunkOptions) []CVChunk {
	step := opts.MaxChunkSize - opts.OverlapSize
	var out []CVChunk
	for start := 0; start < len(text) && len(out) < opts.MaxChunks; start += step {
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
		end := start + opts.MaxChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		out = appendTrimmed(out, text, start, end, GuessSectionType(text[start:end]))
		if end == len(text) {
			break
		}
	}
	return out
}

func appendTrimmed(chunks []CVChunk, text string, start, end int, typ SectionType) []CVChunk {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if start >= end {
		return chunks
	}
	return append(chunks, CVChunk{
		Text:          text[start:end],
		StartOffset:   start,
		EndOffset:     end,
		SectionType:   typ,
		SectionWeight: SectionWeight(typ),
	})
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}

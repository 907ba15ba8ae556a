package domain

import (
	"regexp"
	"strings"
)

// arxivPrefixes are stripped from identifiers before lookup, compared case-insensitively.
var arxivPrefixes = []string{
	"https://arxiv.org/abs/",
	"http://arxiv.org/abs/",
	"arxiv.org/abs/",
	"arxiv:",
}

// versionedArxivID matches a new-style (2301.12345) or old-style
// (hep-th/9901001, math.GT/0309136) arXiv id followed by a version.
var versionedArxivID = regexp.MustCompile(`^(\d{4}\.\d{4,5}|[a-zA-Z-]+(?:\.[A-Z]{2})?/\d{7})v\d+$`)

// NormalizePaperID maps equivalent arXiv identifiers onto one cache key.
// "arXiv:2301.12345v2", "2301.12345v1" and "2301.12345" all normalize to
// "2301.12345". A version is only stripped from ids shaped like arXiv ids.
func NormalizePaperID(id string) string {
	id = strings.TrimSpace(id)
	lower := strings.ToLower(id)
	for _, prefix := range arxivPrefixes {
		if strings.HasPrefix(lower, prefix) {
			id = id[len(prefix):]
			break
		}
	}
	id = strings.TrimSpace(id)

	if m := versionedArxivID.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	return id
}

// PaperRef is a paper as supplied by the caller. The pipeline never keeps a
// reference to caller-owned values; it returns enriched copies.
type PaperRef struct {
	// ID is the arXiv identifier, possibly prefixed or versioned.
	ID string `json:"id"`

	// Title is used only by the fallback provider.
	Title string `json:"title,omitempty"`

	// CitationCount is the number of citing papers.
	CitationCount int `json:"citation_count"`

	// InfluentialCitations is the number of highly influential citations.
	InfluentialCitations int `json:"influential_citations"`

	ReferenceCount int          `json:"reference_count,omitempty"`
	Year           *int         `json:"year,omitempty"`
	Venue          string       `json:"venue,omitempty"`
	Fields         []string     `json:"fields,omitempty"`
	CitationSource RecordSource `json:"citation_source,omitempty"`
}

// Enriched reports whether citation metrics have been applied to the paper.
func (p PaperRef) Enriched() bool {
	return p.CitationSource != ""
}

// Clone returns a deep copy of the paper.
func (p PaperRef) Clone() PaperRef {
	out := p
	if p.Year != nil {
		y := *p.Year
		out.Year = &y
	}
	if p.Fields != nil {
		out.Fields = append([]string(nil), p.Fields...)
	}
	return out
}

// CitationRecord holds the citation metrics returned by a provider.
// Construct it with NewCitationRecord; fields are not mutated afterwards.
type CitationRecord struct {
	CitationCount        int          `json:"citation_count"`
	InfluentialCitations int          `json:"influential_citations"`
	ReferenceCount       int          `json:"reference_count"`
	Year                 *int         `json:"year"`
	Venue                string       `json:"venue"`
	Fields               []string     `json:"fields"`
	Source               RecordSource `json:"source"`
}

// NewCitationRecord builds a record, clamping negative counts to zero and
// copying slices so the record does not alias caller data.
func NewCitationRecord(citations, influential, references int, year *int, venue string, fields []string, source RecordSource) CitationRecord {
	rec := CitationRecord{
		CitationCount:        max(citations, 0),
		InfluentialCitations: max(influential, 0),
		ReferenceCount:       max(references, 0),
		Venue:                strings.TrimSpace(venue),
		Fields:               []string{},
		Source:               source,
	}
	if year != nil && *year > 0 {
		y := *year
		rec.Year = &y
	}
	if len(fields) > 0 {
		rec.Fields = append(rec.Fields, fields...)
	}
	return rec
}

// WithSource returns a copy of the record attributed to source.
func (r CitationRecord) WithSource(source RecordSource) CitationRecord {
	return NewCitationRecord(r.CitationCount, r.InfluentialCitations, r.ReferenceCount, r.Year, r.Venue, r.Fields, source)
}

// ApplyTo returns a copy of paper carrying the record's metrics.
func (r CitationRecord) ApplyTo(paper PaperRef) PaperRef {
	out := paper.Clone()
	out.CitationCount = r.CitationCount
	out.InfluentialCitations = r.InfluentialCitations
	out.ReferenceCount = r.ReferenceCount
	out.Venue = r.Venue
	out.Year = nil
	if r.Year != nil {
		y := *r.Year
		out.Year = &y
	}
	out.Fields = append([]string(nil), r.Fields...)
	out.CitationSource = r.Source
	return out
}

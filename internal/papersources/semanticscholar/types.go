// Package semanticscholar provides the primary citation provider backed by
// the Semantic Scholar Graph API.
//
// Papers are addressed by arXiv identifier ("arXiv:2301.12345") and only the
// citation-related fields are requested.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// PaperResult represents the citation fields of a paper in the Semantic
// Scholar API response. Counts are pointers because the API returns null
// for papers it has not yet indexed.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	// CitationCount is the number of citations this paper has received.
	CitationCount *int `json:"citationCount"`

	// InfluentialCitationCount is the number of highly influential citations.
	InfluentialCitationCount *int `json:"influentialCitationCount"`

	// ReferenceCount is the number of references in this paper.
	ReferenceCount *int `json:"referenceCount"`

	// Year is the publication year.
	Year *int `json:"year"`

	// Venue is the free-text venue string.
	Venue string `json:"venue"`

	// PublicationVenue is the normalized venue, when known.
	PublicationVenue *PublicationVenue `json:"publicationVenue"`

	// FieldsOfStudy are the high-level fields assigned to the paper.
	FieldsOfStudy []string `json:"fieldsOfStudy"`

	// S2FieldsOfStudy are fields assigned by Semantic Scholar's classifier.
	S2FieldsOfStudy []S2Field `json:"s2FieldsOfStudy"`
}

// PublicationVenue contains normalized venue information.
type PublicationVenue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// S2Field is a classifier-assigned field of study.
type S2Field struct {
	// Category is the field name (e.g., "Computer Science").
	Category string `json:"category"`

	// Source is the classifier that produced the field (e.g., "s2-fos-model").
	Source string `json:"source"`
}

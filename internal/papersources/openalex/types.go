// Package openalex provides the fallback citation provider backed by the
// OpenAlex works search.
//
// OpenAlex is a free, open catalog of scholarly papers. The fallback looks a
// paper up by title and keeps only the citation count, publication year,
// venue and broad fields of study of the best match.
//
// API Documentation: https://docs.openalex.org/
package openalex

import (
	"sort"
	"strings"
)

// SearchResponse represents the top-level response from the OpenAlex works search endpoint.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the search results.
type Meta struct {
	Count   int `json:"count"`
	DBTime  int `json:"db_response_time_ms"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents the selected citation fields of an OpenAlex work.
type Work struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	PublicationYear int       `json:"publication_year"`
	CitedByCount    int       `json:"cited_by_count"`
	PrimaryLocation *Location `json:"primary_location"`
	Concepts        []Concept `json:"concepts"`
}

// Concept is an OpenAlex topic tag. Level 0 concepts are broad fields of
// study such as "Computer science".
type Concept struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}

// maxFields caps how many fields of study are kept from a work.
const maxFields = 3

// Location represents where a work is available.
type Location struct {
	Source *Source `json:"source"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// fields returns the names of the work's top-level concepts, highest score
// first, without duplicates.
func (w Work) fields() []string {
	top := make([]Concept, 0, len(w.Concepts))
	for _, c := range w.Concepts {
		if c.Level == 0 && strings.TrimSpace(c.DisplayName) != "" {
			top = append(top, c)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })

	seen := make(map[string]struct{}, len(top))
	var out []string
	for _, c := range top {
		name := strings.TrimSpace(c.DisplayName)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if len(out) == maxFields {
			break
		}
	}
	return out
}

// venue returns the display name of the work's primary source, if any.
func (w Work) venue() string {
	if w.PrimaryLocation == nil || w.PrimaryLocation.Source == nil {
		return ""
	}
	return w.PrimaryLocation.Source.DisplayName
}

// Package domain provides domain models and error types for the Citation Enrichment Service.
package domain

// RecordSource identifies which provider produced a citation record.
type RecordSource string

const (
	RecordSourcePrimary  RecordSource = "primary"
	RecordSourceFallback RecordSource = "fallback"
)

// IsValid reports whether s is a known record source.
func (s RecordSource) IsValid() bool {
	switch s {
	case RecordSourcePrimary, RecordSourceFallback:
		return true
	}
	return false
}

// Resolution describes how a single paper in a batch was resolved.
type Resolution string

const (
	ResolutionCache      Resolution = "cache"
	ResolutionPrimary    Resolution = "primary"
	ResolutionFallback   Resolution = "fallback"
	ResolutionUnenriched Resolution = "unenriched"
	ResolutionSkipped    Resolution = "skipped"
)

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	return string(r)
}

// Enriched reports whether the paper received citation metrics.
func (r Resolution) Enriched() bool {
	switch r {
	case ResolutionCache, ResolutionPrimary, ResolutionFallback:
		return true
	}
	return false
}

// ProviderName names an external citation provider in logs and metrics.
type ProviderName string

const (
	ProviderSemanticScholar ProviderName = "semantic_scholar"
	ProviderOpenAlex        ProviderName = "openalex"
)

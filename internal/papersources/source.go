// Package papersources defines the provider abstractions used by the
// enrichment pipeline together with their shared HTTP plumbing.
//
// The primary provider resolves citation metrics from an arXiv identifier and
// the fallback provider resolves them from a title. Implementations convert
// provider payloads into domain.CitationRecord values immediately, so no raw
// provider shapes escape this package tree.
//
// Example usage:
//
//	primary := semanticscholar.NewClient(cfg, nil)
//	rec, err := primary.FetchCitations(ctx, "2301.12345")
//	if domain.IsNotFound(err) {
//		// try again or fall back
//	}
package papersources

import (
	"context"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// CitationSource looks up citation metrics by normalized arXiv identifier.
type CitationSource interface {
	// FetchCitations performs a single lookup attempt. Errors are classified
	// as domain.ErrNotFound, domain.ErrRateLimited or domain.ErrTransient.
	FetchCitations(ctx context.Context, id string) (domain.CitationRecord, error)

	// Name returns a human-readable name for logging.
	Name() string
}

// TitleSource looks up citation metrics by paper title.
type TitleSource interface {
	// FetchByTitle performs a single best-effort lookup. A match with zero
	// citations is reported as domain.ErrFallbackRejected.
	FetchByTitle(ctx context.Context, title string) (domain.CitationRecord, error)

	// Name returns a human-readable name for logging.
	Name() string
}

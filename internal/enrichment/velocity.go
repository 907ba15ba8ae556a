package enrichment

import (
	"time"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// CitationVelocity returns citations per calendar year since publication,
// counting at least one year. It reports false when the year is unknown.
func CitationVelocity(rec domain.CitationRecord, now time.Time) (float64, bool) {
	if rec.Year == nil {
		return 0, false
	}
	years := max(now.Year()-*rec.Year, 1)
	return float64(rec.CitationCount) / float64(years), true
}

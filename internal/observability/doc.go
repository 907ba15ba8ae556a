// Package observability provides logging and metrics support for the
// citation enrichment service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Scope it to a batch, a paper, or a provider call:
//
//	logger = observability.WithBatchContext(logger, batchID, len(papers))
//	logger = observability.WithPaperContext(logger, paperID)
//	logger = observability.WithProviderContext(logger, "semantic_scholar", attempt)
//
// # Metrics
//
// Metrics are registered on the supplied registry, or the default one when nil:
//
//	metrics := observability.NewMetrics("citation_enrichment", nil)
//	metrics.RecordPaper("cache")
//	metrics.RecordSourceRequest("openalex", "", elapsed.Seconds())
//
// All Record methods are no-ops on a nil *Metrics.
//
// # Standard Fields
//
//   - request_id: HTTP request or correlation identifier
//   - batch_id: enrichment batch identifier
//   - paper_id: normalized arXiv identifier
//   - source: citation provider (semantic_scholar, openalex)
//   - attempt: provider attempt number, starting at 1
package observability

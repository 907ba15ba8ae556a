package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation enrichment service,
// grouped by batches, papers, provider requests, cache and events.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// BatchesTotal counts enrichment batches that ran to completion or cancellation.
	BatchesTotal *prometheus.CounterVec

	// BatchDuration observes the wall-clock duration of batches in seconds.
	BatchDuration prometheus.Histogram

	// BatchSize observes the number of papers submitted per batch.
	BatchSize prometheus.Histogram

	// PapersByResolution counts papers labeled by how they were resolved
	// (cache, primary, fallback, unenriched, skipped).
	PapersByResolution *prometheus.CounterVec

	// SourceRequestsTotal counts provider lookups, labeled by source.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed provider lookups, labeled by source and error kind.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes provider lookup latency in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts throttled provider responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// CacheLookups counts cache reads, labeled by result (hit, miss).
	CacheLookups *prometheus.CounterVec

	// CacheEvictions counts stale entries removed from the cache.
	CacheEvictions prometheus.Counter

	// EventsPublished counts batch events, labeled by outcome (ok, error).
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates all metrics under namespace and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of enrichment batches, by outcome",
		}, []string{"outcome"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of enrichment batches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_papers",
			Help:      "Number of papers submitted per batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PapersByResolution: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_total",
			Help:      "Papers processed, by resolution",
		}, []string{"resolution"}),
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Citation provider lookups, by source",
		}, []string{"source"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Failed citation provider lookups, by source and error kind",
		}, []string{"source", "kind"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Citation provider lookup latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Throttled responses from citation providers",
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Citation cache reads, by result",
		}, []string{"result"}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Stale citation cache entries removed",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Batch completion events, by outcome",
		}, []string{"outcome"}),
	}
}

// RecordBatch records a finished batch.
func (m *Metrics) RecordBatch(outcome string, papers int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchSize.Observe(float64(papers))
	m.BatchDuration.Observe(durationSeconds)
}

// RecordPaper records how a single paper was resolved.
func (m *Metrics) RecordPaper(resolution string) {
	if m == nil {
		return
	}
	m.PapersByResolution.WithLabelValues(resolution).Inc()
}

// RecordSourceRequest records one provider lookup. An empty kind means success.
func (m *Metrics) RecordSourceRequest(source, kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
	if kind != "" {
		m.SourceRequestsFailed.WithLabelValues(source, kind).Inc()
	}
}

// RecordSourceRateLimited records a throttled provider response.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheEvictions records removed stale entries.
func (m *Metrics) RecordCacheEvictions(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(count))
}

// RecordEventPublished records the outcome of publishing a batch event.
func (m *Metrics) RecordEventPublished(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(outcome).Inc()
}

// Package enrichment resolves citation metrics for batches of papers.
//
// Each paper moves through cache lookup, the primary provider with retries,
// and finally the title-based fallback. A bounded worker pool processes the
// batch and results are returned in input order. Per-paper failures never
// fail the batch; they are reported through Outcomes and Stats.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/events"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/papersources"
)

// Defaults for Config.
const (
	DefaultBackoffUnit         = time.Second
	DefaultLowSuccessThreshold = 0.5
	publishTimeout             = 5 * time.Second
)

// CitationCache is the cache surface used by the orchestrator.
type CitationCache interface {
	Get(ctx context.Context, id string) (domain.CitationRecord, bool)
	Set(ctx context.Context, id string, rec domain.CitationRecord) error
}

// Dependencies are the collaborators of an Orchestrator. Only Primary is required.
type Dependencies struct {
	Primary   papersources.CitationSource
	Fallback  papersources.TitleSource
	Cache     CitationCache
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Config tunes the retry loop and diagnostics.
type Config struct {
	// BackoffUnit is multiplied by the attempt number between primary retries.
	BackoffUnit time.Duration

	// LowSuccessThreshold triggers a warning when the primary success rate of
	// a batch falls below it. Zero selects the default; negative disables.
	LowSuccessThreshold float64

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Sleep overrides the backoff sleep, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator runs enrichment batches. It is safe for concurrent use.
type Orchestrator struct {
	primary   papersources.CitationSource
	fallback  papersources.TitleSource
	cache     CitationCache
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	stats     Stats

	backoffUnit  time.Duration
	lowThreshold float64
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error

	primaryLabel  string
	fallbackLabel string
}

// New creates an orchestrator.
func New(deps Dependencies, cfg Config) (*Orchestrator, error) {
	if deps.Primary == nil {
		return nil, fmt.Errorf("primary citation source is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = 0
	}
	if cfg.LowSuccessThreshold == 0 {
		cfg.LowSuccessThreshold = DefaultLowSuccessThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	o := &Orchestrator{
		primary:      deps.Primary,
		fallback:     deps.Fallback,
		cache:        deps.Cache,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With().Str("component", "enrichment").Logger(),
		backoffUnit:  cfg.BackoffUnit,
		lowThreshold: cfg.LowSuccessThreshold,
		now:          cfg.Now,
		sleep:        cfg.Sleep,
		primaryLabel: sourceLabel(deps.Primary.Name()),
	}
	if deps.Fallback != nil {
		o.fallbackLabel = sourceLabel(deps.Fallback.Name())
	}
	return o, nil
}

// Stats returns a snapshot of the counters accumulated since the last reset.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// ResetStats zeroes the accumulated counters.
func (o *Orchestrator) ResetStats() {
	o.stats.Reset()
}

// Enrich returns enriched copies of papers in input order. Papers that
// cannot be enriched are returned unmodified. The only error is an
// invalid Options value.
func (o *Orchestrator) Enrich(ctx context.Context, papers []domain.PaperRef, opts Options) ([]domain.PaperRef, error) {
	res, err := o.EnrichBatch(ctx, papers, opts)
	if err != nil {
		return nil, err
	}
	return res.Papers, nil
}

// EnrichBatch is Enrich with per-paper outcomes and batch statistics.
func (o *Orchestrator) EnrichBatch(ctx context.Context, papers []domain.PaperRef, opts Options) (*BatchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := o.now()
	res := &BatchResult{
		ID:       uuid.New(),
		Papers:   make([]domain.PaperRef, len(papers)),
		Outcomes: make([]Outcome, len(papers)),
	}
	for i, p := range papers {
		res.Papers[i] = p.Clone()
		// Papers never dispatched keep this outcome.
		res.Outcomes[i] = Outcome{PaperID: p.ID, Resolution: domain.ResolutionUnenriched, Error: domain.ErrorKindCancelled}
	}

	ctx = observability.WithBatchID(ctx, res.ID.String())
	logger := observability.WithBatchContext(observability.WithRequestContext(ctx, o.logger), res.ID.String(), len(papers))
	logger.Info().
		Int("concurrency", opts.Concurrency).
		Int("retry_count", opts.RetryCount).
		Bool("use_fallback", opts.UseFallback).
		Bool("use_cache", opts.UseCache).
		Msg("starting enrichment batch")

	var batch Stats
	o.runPool(ctx, res, opts, &batch, logger)

	res.Stats = batch.Snapshot()
	res.Duration = o.now().Sub(start)
	for _, out := range res.Outcomes {
		if out.Error == domain.ErrorKindCancelled {
			res.Cancelled = true
			break
		}
	}

	o.finish(ctx, res, logger)
	return res, nil
}

// runPool fans paper indices out to min(concurrency, n) workers. Each
// worker writes only its own result slots, so input order is preserved.
// Dispatch stops when ctx is cancelled.
func (o *Orchestrator) runPool(ctx context.Context, res *BatchResult, opts Options, batch *Stats, logger zerolog.Logger) {
	n := len(res.Papers)
	if n == 0 {
		return
	}

	indices := make(chan int)
	var wg sync.WaitGroup

	workers := min(opts.Concurrency, n)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				paper, outcome, delta := o.enrichOne(ctx, res.Papers[i], opts, logger)
				res.Papers[i] = paper
				res.Outcomes[i] = outcome

				o.stats.Add(delta)
				batch.Add(delta)
				o.metrics.RecordPaper(outcome.Resolution.String())
			}
		}()
	}

dispatch:
	for i := range n {
		select {
		case indices <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indices)
	wg.Wait()
}

// enrichOne runs the lookup sequence for a single paper and returns the
// resulting copy, its outcome, and the counter increments it caused.
func (o *Orchestrator) enrichOne(ctx context.Context, paper domain.PaperRef, opts Options, batchLogger zerolog.Logger) (domain.PaperRef, Outcome, StatsSnapshot) {
	var delta StatsSnapshot
	outcome := Outcome{PaperID: paper.ID}

	id := domain.NormalizePaperID(paper.ID)
	if id == "" {
		outcome.Resolution = domain.ResolutionSkipped
		return paper, outcome, delta
	}
	logger := observability.WithPaperContext(batchLogger, id)

	if opts.UseCache && o.cache != nil {
		rec, ok := o.cache.Get(ctx, id)
		o.metrics.RecordCacheLookup(ok)
		if ok {
			delta.CacheHits++
			outcome.Resolution = domain.ResolutionCache
			return rec.ApplyTo(paper), outcome, delta
		}
	}

	if err := ctx.Err(); err != nil {
		outcome.Resolution = domain.ResolutionUnenriched
		outcome.Error = domain.ErrorKindCancelled
		return paper, outcome, delta
	}

	delta.TotalAttempts++
	rec, attempts, throttled, err := o.fetchPrimary(ctx, id, opts.RetryCount, logger)
	outcome.Attempts = attempts
	if throttled {
		delta.RateLimited++
	}
	if err == nil {
		delta.PrimarySuccess++
		o.store(ctx, id, rec, opts, logger)
		outcome.Resolution = domain.ResolutionPrimary
		return rec.ApplyTo(paper), outcome, delta
	}

	kind := domain.Classify(err)
	if kind == domain.ErrorKindCancelled || ctx.Err() != nil {
		// Cancellation is not exhaustion; the paper is left for a rerun.
		outcome.Resolution = domain.ResolutionUnenriched
		outcome.Error = domain.ErrorKindCancelled
		return paper, outcome, delta
	}
	delta.PrimaryFail++

	if opts.UseFallback && o.fallback != nil && strings.TrimSpace(paper.Title) != "" {
		if rec, ok := o.fetchFallback(ctx, paper.Title, logger); ok {
			delta.FallbackUsed++
			o.store(ctx, id, rec, opts, logger)
			outcome.Resolution = domain.ResolutionFallback
			return rec.ApplyTo(paper), outcome, delta
		}
	}

	logger.Debug().Str("error_kind", string(kind)).Err(err).Msg("paper left unenriched")
	outcome.Resolution = domain.ResolutionUnenriched
	outcome.Error = kind
	return paper, outcome, delta
}

// fetchPrimary makes up to retryCount+1 primary attempts. Not-found results
// are retried immediately; transient and throttled failures sleep
// BackoffUnit*attempt first. Each attempt waits on the provider's limiter
// inside the client.
func (o *Orchestrator) fetchPrimary(ctx context.Context, id string, retryCount int, logger zerolog.Logger) (domain.CitationRecord, int, bool, error) {
	maxAttempts := retryCount + 1
	var (
		lastErr   error
		throttled bool
		attempt   int
	)

	for attempt = 1; attempt <= maxAttempts; attempt++ {
		started := o.now()
		rec, err := o.primary.FetchCitations(ctx, id)
		kind := domain.Classify(err)
		o.metrics.RecordSourceRequest(o.primaryLabel, string(kind), o.now().Sub(started).Seconds())

		if err == nil {
			return rec.WithSource(domain.RecordSourcePrimary), attempt, throttled, nil
		}
		lastErr = err

		attemptLogger := observability.WithProviderContext(logger, o.primaryLabel, attempt)
		switch kind {
		case domain.ErrorKindCancelled:
			return domain.CitationRecord{}, attempt, throttled, err
		case domain.ErrorKindNotFound:
			attemptLogger.Debug().Msg("paper not found, retrying")
			continue
		case domain.ErrorKindRateLimited:
			throttled = true
			o.metrics.RecordSourceRateLimited(o.primaryLabel)
			attemptLogger.Warn().Err(err).Msg("citation provider rate limited")
		default:
			attemptLogger.Warn().Err(err).Msg("citation lookup failed")
		}

		if attempt == maxAttempts {
			break
		}
		if err := o.sleep(ctx, o.backoffUnit*time.Duration(attempt)); err != nil {
			return domain.CitationRecord{}, attempt, throttled, err
		}
	}

	return domain.CitationRecord{}, min(attempt, maxAttempts), throttled, lastErr
}

// fetchFallback makes one title lookup. Zero-count matches are rejected by
// the provider and never cached.
func (o *Orchestrator) fetchFallback(ctx context.Context, title string, logger zerolog.Logger) (domain.CitationRecord, bool) {
	started := o.now()
	rec, err := o.fallback.FetchByTitle(ctx, title)
	kind := domain.Classify(err)
	o.metrics.RecordSourceRequest(o.fallbackLabel, string(kind), o.now().Sub(started).Seconds())

	fbLogger := observability.WithProviderContext(logger, o.fallbackLabel, 1)
	switch {
	case err == nil && rec.CitationCount > 0:
		fbLogger.Debug().Int("citation_count", rec.CitationCount).Msg("fallback lookup succeeded")
		return rec.WithSource(domain.RecordSourceFallback), true
	case err == nil, errors.Is(err, domain.ErrFallbackRejected):
		fbLogger.Debug().Msg("fallback match rejected")
	case kind == domain.ErrorKindRateLimited:
		o.metrics.RecordSourceRateLimited(o.fallbackLabel)
		fbLogger.Warn().Err(err).Msg("fallback provider rate limited")
	default:
		fbLogger.Warn().Err(err).Msg("fallback lookup failed")
	}
	return domain.CitationRecord{}, false
}

func (o *Orchestrator) store(ctx context.Context, id string, rec domain.CitationRecord, opts Options, logger zerolog.Logger) {
	if !opts.UseCache || o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, id, rec); err != nil {
		logger.Warn().Err(err).Msg("failed to persist citation cache entry")
	}
}

// finish logs the batch summary, emits diagnostics and publishes the event.
func (o *Orchestrator) finish(ctx context.Context, res *BatchResult, logger zerolog.Logger) {
	outcome := "completed"
	if res.Cancelled {
		outcome = "cancelled"
	}
	o.metrics.RecordBatch(outcome, len(res.Papers), res.Duration.Seconds())

	s := res.Stats
	logger.Info().
		Int("enriched", res.Enriched()).
		Int("cache_hits", s.CacheHits).
		Int("primary_success", s.PrimarySuccess).
		Int("primary_fail", s.PrimaryFail).
		Int("fallback_used", s.FallbackUsed).
		Int("rate_limited", s.RateLimited).
		Dur("duration", res.Duration).
		Bool("cancelled", res.Cancelled).
		Msg("enrichment batch finished")

	if o.lowThreshold > 0 && s.TotalAttempts > 0 && s.PrimarySuccessRate() < o.lowThreshold {
		logger.Warn().
			Float64("success_rate", s.PrimarySuccessRate()).
			Float64("threshold", o.lowThreshold).
			Str("hint", res.Hint()).
			Msg("primary citation provider success rate below threshold")
	}

	// The batch context may already be cancelled; publish on a detached one.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := o.publisher.PublishBatchCompleted(pubCtx, res.event(o.now()))
	o.metrics.RecordEventPublished(err)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to publish batch event")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sourceLabel turns a provider display name into a metric label,
// e.g. "Semantic Scholar" into "semantic_scholar".
func sourceLabel(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

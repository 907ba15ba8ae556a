// Package app assembles the enrichment pipeline from configuration. It is
// shared by the HTTP service and the command-line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/cache"
	"github.com/helixir/citation-enrichment-service/internal/config"
	"github.com/helixir/citation-enrichment-service/internal/database"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
	"github.com/helixir/citation-enrichment-service/internal/events"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/papersources"
	"github.com/helixir/citation-enrichment-service/internal/papersources/openalex"
	"github.com/helixir/citation-enrichment-service/internal/papersources/semanticscholar"
)

// App holds the wired pipeline and the resources it owns.
type App struct {
	Orchestrator *enrichment.Orchestrator
	Cache        *cache.Cache
	Publisher    events.Publisher

	// Checks are readiness probes for external dependencies, keyed by name.
	Checks map[string]func(ctx context.Context) error

	defaults enrichment.Options
	closers  []func() error
	logger   zerolog.Logger
}

// Options returns the batch options configured as defaults.
func (a *App) Options() enrichment.Options {
	return a.defaults
}

// Build wires the cache backend, providers, publisher and orchestrator
// described by cfg. Callers must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*App, error) {
	a := &App{
		Checks: make(map[string]func(ctx context.Context) error),
		defaults: enrichment.Options{
			Concurrency: cfg.Enrichment.Concurrency,
			RetryCount:  cfg.Enrichment.RetryCount,
			UseFallback: cfg.Enrichment.UseFallback,
			UseCache:    cfg.Enrichment.UseCache,
		},
		logger: logger,
	}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cache.New(ctx, store, cache.Config{TTL: cfg.Cache.TTL()}, logger)
	a.closers = append(a.closers, a.Cache.Close)

	a.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		a.Publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		a.closers = append(a.closers, a.Publisher.Close)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	}

	primary, fallback := buildSources(cfg.PaperSources)

	a.Orchestrator, err = enrichment.New(enrichment.Dependencies{
		Primary:   primary,
		Fallback:  fallback,
		Cache:     a.Cache,
		Publisher: a.Publisher,
		Metrics:   metrics,
		Logger:    logger,
	}, enrichment.Config{
		BackoffUnit:         cfg.Enrichment.BackoffUnit,
		LowSuccessThreshold: cfg.Enrichment.LowSuccessThreshold,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	logger.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Int("cache_entries", a.Cache.Len()).
		Bool("fallback", fallback != nil).
		Msg("enrichment pipeline ready")
	return a, nil
}

// openStore opens the configured persistence backend for the cache.
func (a *App) openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case config.CacheBackendFile, "":
		return cache.NewFileStore(cfg.Cache.Path), nil

	case config.CacheBackendMemory:
		return cache.MemoryStore{}, nil

	case config.CacheBackendRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		a.Checks["redis"] = store.Ping
		return store, nil

	case config.CacheBackendPostgres:
		db, err := database.New(ctx, &cfg.Database, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.Checks["database"] = db.Ping

		if cfg.Database.MigrationAutoRun {
			if err := migrate(db, cfg.Database.MigrationPath, a.logger); err != nil {
				return nil, err
			}
		}
		return cache.NewPostgresStore(db), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// buildSources creates the primary provider and, when enabled, the fallback.
func buildSources(cfg config.PaperSourcesConfig) (papersources.CitationSource, papersources.TitleSource) {
	primary := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL: cfg.SemanticScholar.BaseURL,
		APIKey:  cfg.SemanticScholar.APIKey,
		Timeout: cfg.SemanticScholar.Timeout,
		Delay:   cfg.SemanticScholar.Delay,
	}, nil)

	if !cfg.OpenAlex.Enabled {
		return primary, nil
	}
	return primary, openalex.New(openalex.Config{
		BaseURL: cfg.OpenAlex.BaseURL,
		Email:   cfg.OpenAlex.Email,
		Timeout: cfg.OpenAlex.Timeout,
		Delay:   cfg.OpenAlex.Delay,
	})
}

// Close releases every resource in reverse order of acquisition. The cache
// is flushed before the database it may write to is closed.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

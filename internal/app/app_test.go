package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-enrichment-service/internal/config"
	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
)

func testConfig(t *testing.T, primaryURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Enrichment: config.EnrichmentConfig{
			Concurrency: 3,
			RetryCount:  1,
			UseFallback: true,
			UseCache:    true,
			BackoffUnit: time.Millisecond,
		},
		Cache: config.CacheConfig{
			Backend: config.CacheBackendMemory,
			Path:    filepath.Join(t.TempDir(), "cache.json"),
			TTLDays: 7,
		},
		PaperSources: config.PaperSourcesConfig{
			SemanticScholar: config.PaperSourceConfig{Enabled: true, BaseURL: primaryURL, Timeout: time.Second, Delay: -1},
			OpenAlex:        config.PaperSourceConfig{Enabled: false},
		},
	}
}

func primaryServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"citationCount":7,"influentialCitationCount":1,"referenceCount":20,"year":2023}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild(t *testing.T) {
	t.Run("memory backend enriches through the primary", func(t *testing.T) {
		var hits atomic.Int32
		srv := primaryServer(t, &hits)

		a, err := Build(context.Background(), testConfig(t, srv.URL), nil, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })

		assert.Equal(t, enrichment.Options{Concurrency: 3, RetryCount: 1, UseFallback: true, UseCache: true}, a.Options())
		assert.Empty(t, a.Checks)

		papers := []domain.PaperRef{{ID: "arXiv:2301.00001v1", Title: "A"}}
		out, err := a.Orchestrator.Enrich(context.Background(), papers, a.Options())
		require.NoError(t, err)
		assert.Equal(t, 7, out[0].CitationCount)
		assert.Equal(t, domain.RecordSourcePrimary, out[0].CitationSource)

		_, err = a.Orchestrator.Enrich(context.Background(), papers, a.Options())
		require.NoError(t, err)
		assert.Equal(t, int32(1), hits.Load(), "second run is served from the cache")
	})

	t.Run("file backend persists across builds", func(t *testing.T) {
		var hits atomic.Int32
		srv := primaryServer(t, &hits)
		cfg := testConfig(t, srv.URL)
		cfg.Cache.Backend = config.CacheBackendFile

		a, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		_, err = a.Orchestrator.Enrich(context.Background(), []domain.PaperRef{{ID: "2301.00002"}}, a.Options())
		require.NoError(t, err)
		require.NoError(t, a.Close())

		b, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })

		assert.Equal(t, 1, b.Cache.Len())
		assert.FileExists(t, cfg.Cache.Path)
	})

	t.Run("redis backend registers a readiness check", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)

		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Cache.Backend = config.CacheBackendRedis
		cfg.Redis = config.RedisConfig{Address: mr.Addr(), Key: "test_cache"}

		a, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })

		require.Contains(t, a.Checks, "redis")
		assert.NoError(t, a.Checks["redis"](context.Background()))
	})

	t.Run("unreachable redis fails", func(t *testing.T) {
		cfg := testConfig(t, "")
		cfg.Cache.Backend = config.CacheBackendRedis
		cfg.Redis = config.RedisConfig{Address: "127.0.0.1:1"}

		_, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open redis cache")
	})

	t.Run("unknown backend fails", func(t *testing.T) {
		cfg := testConfig(t, "")
		cfg.Cache.Backend = "s3"

		_, err := Build(context.Background(), cfg, nil, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown cache backend "s3"`)
	})
}

func TestBuildSources(t *testing.T) {
	cfg := testConfig(t, "")

	primary, fallback := buildSources(cfg.PaperSources)
	assert.Equal(t, "Semantic Scholar", primary.Name())
	assert.Nil(t, fallback)

	cfg.PaperSources.OpenAlex.Enabled = true
	_, fallback = buildSources(cfg.PaperSources)
	require.NotNil(t, fallback)
	assert.Equal(t, "OpenAlex", fallback.Name())
}

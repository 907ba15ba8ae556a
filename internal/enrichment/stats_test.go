package enrichment

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

func TestStats(t *testing.T) {
	t.Run("concurrent adds", func(t *testing.T) {
		var st Stats
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				st.Add(StatsSnapshot{TotalAttempts: 1, PrimarySuccess: 1, CacheHits: 2})
			}()
		}
		wg.Wait()

		assert.Equal(t, StatsSnapshot{TotalAttempts: 50, PrimarySuccess: 50, CacheHits: 100}, st.Snapshot())
	})

	t.Run("reset", func(t *testing.T) {
		var st Stats
		st.Add(StatsSnapshot{PrimaryFail: 3, FallbackUsed: 1, RateLimited: 2})
		st.Reset()
		assert.Equal(t, StatsSnapshot{}, st.Snapshot())
	})
}

func TestStatsSnapshot_PrimarySuccessRate(t *testing.T) {
	assert.Equal(t, 1.0, StatsSnapshot{}.PrimarySuccessRate())
	assert.InDelta(t, 0.25, StatsSnapshot{TotalAttempts: 4, PrimarySuccess: 1}.PrimarySuccessRate(), 1e-9)
}

func TestOptions_Validate(t *testing.T) {
	t.Run("bounds are inclusive", func(t *testing.T) {
		assert.NoError(t, Options{Concurrency: 1, RetryCount: 0}.Validate())
		assert.NoError(t, Options{Concurrency: MaxConcurrency, RetryCount: MaxRetryCount}.Validate())
	})

	t.Run("reports every violation", func(t *testing.T) {
		err := Options{Concurrency: 0, RetryCount: -2}.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Contains(t, err.Error(), "concurrency: must be at least 1")
		assert.Contains(t, err.Error(), "retry_count: must be at least 0")
	})
}

func TestCitationVelocity(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	year := func(y int) *int { return &y }

	tests := []struct {
		name   string
		rec    domain.CitationRecord
		want   float64
		wantOK bool
	}{
		{name: "older paper", rec: domain.NewCitationRecord(100, 0, 0, year(2022), "", nil, ""), want: 25, wantOK: true},
		{name: "published this year", rec: domain.NewCitationRecord(30, 0, 0, year(2026), "", nil, ""), want: 30, wantOK: true},
		{name: "future year clamps to one", rec: domain.NewCitationRecord(8, 0, 0, year(2027), "", nil, ""), want: 8, wantOK: true},
		{name: "unknown year", rec: domain.NewCitationRecord(8, 0, 0, nil, "", nil, ""), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CitationVelocity(tt.rec, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

package papersources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("first request is admitted immediately", func(t *testing.T) {
		rl := NewRateLimiter(time.Second)

		require.NotNil(t, rl)
		assert.True(t, rl.Allow())
		assert.False(t, rl.Allow(), "burst is a single token")
		assert.Equal(t, time.Second, rl.Interval())
	})

	t.Run("zero interval disables spacing", func(t *testing.T) {
		rl := NewRateLimiter(0)

		for i := 0; i < 100; i++ {
			assert.True(t, rl.Allow())
		}
	})
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("spaces consecutive requests", func(t *testing.T) {
		rl := NewRateLimiter(100 * time.Millisecond)
		ctx := context.Background()

		require.NoError(t, rl.Wait(ctx))
		start := time.Now()
		require.NoError(t, rl.Wait(ctx))
		elapsed := time.Since(start)

		assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond,
			"should wait for spacing, waited only %v", elapsed)
	})

	t.Run("respects context deadline", func(t *testing.T) {
		rl := NewRateLimiter(time.Second)
		assert.True(t, rl.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := rl.Wait(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadline")
	})

	t.Run("returns immediately with canceled context", func(t *testing.T) {
		rl := NewRateLimiter(time.Second)
		assert.True(t, rl.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := rl.Wait(ctx)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Run("shared limiter spaces goroutines", func(t *testing.T) {
		const interval = 40 * time.Millisecond
		rl := NewRateLimiter(interval)
		ctx := context.Background()

		var mu sync.Mutex
		var stamps []time.Time
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, rl.Wait(ctx))
				mu.Lock()
				stamps = append(stamps, time.Now())
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Len(t, stamps, 4)
		first, last := stamps[0], stamps[0]
		for _, s := range stamps {
			if s.Before(first) {
				first = s
			}
			if s.After(last) {
				last = s
			}
		}
		// Four admissions need at least three gaps.
		assert.GreaterOrEqual(t, last.Sub(first), 3*interval-15*time.Millisecond)
	})
}

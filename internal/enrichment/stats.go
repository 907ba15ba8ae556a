package enrichment

import "sync"

// StatsSnapshot is a point-in-time copy of the pipeline counters.
type StatsSnapshot struct {
	// TotalAttempts counts papers that reached the primary provider, once per paper.
	TotalAttempts int `json:"total_attempts"`
	// PrimarySuccess counts papers resolved by the primary provider.
	PrimarySuccess int `json:"primary_success"`
	// PrimaryFail counts papers whose primary attempts were exhausted.
	PrimaryFail int `json:"primary_fail"`
	// FallbackUsed counts papers resolved by the fallback provider.
	FallbackUsed int `json:"fallback_used"`
	// CacheHits counts papers served from the cache.
	CacheHits int `json:"cache_hits"`
	// RateLimited counts papers whose primary attempts saw a throttling signal.
	RateLimited int `json:"rate_limited"`
}

// PrimarySuccessRate is PrimarySuccess over TotalAttempts, or 1 when nothing
// reached the primary.
func (s StatsSnapshot) PrimarySuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 1
	}
	return float64(s.PrimarySuccess) / float64(s.TotalAttempts)
}

func (s StatsSnapshot) add(o StatsSnapshot) StatsSnapshot {
	return StatsSnapshot{
		TotalAttempts:  s.TotalAttempts + o.TotalAttempts,
		PrimarySuccess: s.PrimarySuccess + o.PrimarySuccess,
		PrimaryFail:    s.PrimaryFail + o.PrimaryFail,
		FallbackUsed:   s.FallbackUsed + o.FallbackUsed,
		CacheHits:      s.CacheHits + o.CacheHits,
		RateLimited:    s.RateLimited + o.RateLimited,
	}
}

// Stats holds the counters shared by all workers.
type Stats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// Snapshot returns a copy of the current counters.
func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Reset zeroes every counter.
func (st *Stats) Reset() {
	st.mu.Lock()
	st.s = StatsSnapshot{}
	st.mu.Unlock()
}

// Add merges delta into the counters.
func (st *Stats) Add(delta StatsSnapshot) {
	st.mu.Lock()
	st.s = st.s.add(delta)
	st.mu.Unlock()
}

package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// naiveISOLayout matches zone-less ISO-8601 timestamps such as those written
// by Python's datetime.isoformat(). They are read as local time.
const naiveISOLayout = "2006-01-02T15:04:05.999999999"

// Entry is a cached citation record together with its write time.
type Entry struct {
	Data     domain.CitationRecord `json:"data"`
	CachedAt Timestamp             `json:"cached_at"`
}

// NewEntry creates an entry stamped at cachedAt.
func NewEntry(rec domain.CitationRecord, cachedAt time.Time) Entry {
	return Entry{Data: rec, CachedAt: Timestamp{Time: cachedAt}}
}

// Expired reports whether the entry is older than ttl at now.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt.Time) > ttl
}

// Timestamp is a time.Time that is written as RFC 3339 and read from either
// RFC 3339 or zone-less ISO-8601.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("cached_at: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses an RFC 3339 or zone-less ISO-8601 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation(naiveISOLayout, s, time.Local); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("cached_at: unrecognised timestamp %q", s)
}

// decodeEntries parses a JSON object of id to entry. Entries that fail to
// parse are skipped and reported in the second return value.
func decodeEntries(raw map[string]json.RawMessage) (map[string]Entry, []string) {
	entries := make(map[string]Entry, len(raw))
	var skipped []string
	for id, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil || e.CachedAt.IsZero() {
			skipped = append(skipped, id)
			continue
		}
		entries[id] = e
	}
	return entries, skipped
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/database"
	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// PostgresStore persists entries in the citation_cache table created by the
// migrations directory.
type PostgresStore struct {
	db database.DBTX
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over db. The caller owns db.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (map[string]Entry, error) {
	const query = `SELECT paper_id, data, cached_at FROM citation_cache`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return map[string]Entry{}, fmt.Errorf("%w: query citation_cache: %v", domain.ErrCacheCorrupt, err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	skipped := 0
	for rows.Next() {
		var (
			id       string
			data     []byte
			cachedAt time.Time
		)
		if err := rows.Scan(&id, &data, &cachedAt); err != nil {
			return entries, fmt.Errorf("%w: scan citation_cache row: %v", domain.ErrCacheCorrupt, err)
		}

		var rec domain.CitationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			skipped++
			continue
		}
		entries[id] = NewEntry(rec, cachedAt)
	}
	if err := rows.Err(); err != nil {
		return entries, fmt.Errorf("%w: iterate citation_cache: %v", domain.ErrCacheCorrupt, err)
	}

	if skipped > 0 {
		return entries, fmt.Errorf("%w: skipped %d unreadable entries", domain.ErrCacheCorrupt, skipped)
	}
	return entries, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, id string, entry Entry) error {
	const query = `
		INSERT INTO citation_cache (paper_id, data, cached_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (paper_id) DO UPDATE
		SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at`

	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, id, data, entry.CachedAt.Time); err != nil {
		return fmt.Errorf("upsert citation_cache %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `DELETE FROM citation_cache WHERE paper_id = ANY($1)`
	if _, err := s.db.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("delete citation_cache: %w", err)
	}
	return nil
}

// Close implements Store. The connection pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// DefaultRedisKey is the hash holding all cache entries.
const DefaultRedisKey = "citation_cache"

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore persists entries as fields of a single Redis hash, with the
// entry JSON as the value.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg.Key), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (map[string]Entry, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return map[string]Entry{}, fmt.Errorf("%w: reading redis hash %s: %v", domain.ErrCacheCorrupt, s.key, err)
	}

	raw := make(map[string]json.RawMessage, len(values))
	for id, v := range values {
		raw[id] = json.RawMessage(v)
	}

	entries, skipped := decodeEntries(raw)
	if len(skipped) > 0 {
		sort.Strings(skipped)
		return entries, fmt.Errorf("%w: skipped %d unreadable entries: %s",
			domain.ErrCacheCorrupt, len(skipped), strings.Join(skipped, ", "))
	}
	return entries, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, id string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, id, data).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, ids...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

package cache

import "context"

// Store persists cache entries. Implementations must be safe for use by a
// single Cache; the Cache serializes all mutations.
type Store interface {
	// Load returns every persisted entry. Unreadable data is reported with an
	// error wrapping domain.ErrCacheCorrupt alongside whatever entries could
	// be recovered.
	Load(ctx context.Context) (map[string]Entry, error)

	// Put inserts or replaces one entry.
	Put(ctx context.Context, id string, entry Entry) error

	// Delete removes the given entries. Missing ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore keeps nothing beyond the process lifetime.
type MemoryStore struct{}

// Load implements Store.
func (MemoryStore) Load(context.Context) (map[string]Entry, error) {
	return map[string]Entry{}, nil
}

// Put implements Store.
func (MemoryStore) Put(context.Context, string, Entry) error { return nil }

// Delete implements Store.
func (MemoryStore) Delete(context.Context, ...string) error { return nil }

// Close implements Store.
func (MemoryStore) Close() error { return nil }

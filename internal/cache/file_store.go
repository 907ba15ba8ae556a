package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// DefaultFilePath is where the JSON cache lives unless configured otherwise.
const DefaultFilePath = "./data/citation_cache.json"

// FileStore persists the cache as one JSON object keyed by paper id.
// Every mutation rewrites the whole file through a temp file and rename.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store at path. Parent directories are created on
// first write.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{
		path:    path,
		entries: make(map[string]Entry),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing or empty file yields an empty map.
func (s *FileStore) Load(_ context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return map[string]Entry{}, fmt.Errorf("%w: reading %s: %v", domain.ErrCacheCorrupt, s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]Entry{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return map[string]Entry{}, fmt.Errorf("%w: parsing %s: %v", domain.ErrCacheCorrupt, s.path, err)
	}

	entries, skipped := decodeEntries(raw)
	for id, e := range entries {
		s.entries[id] = e
	}

	out := copyEntries(entries)
	if len(skipped) > 0 {
		sort.Strings(skipped)
		return out, fmt.Errorf("%w: skipped %d unreadable entries: %s",
			domain.ErrCacheCorrupt, len(skipped), strings.Join(skipped, ", "))
	}
	return out, nil
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, id string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = entry
	return s.flush()
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.entries, id)
	}
	return s.flush()
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// flush writes the current entries atomically. Callers hold s.mu.
func (s *FileStore) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".citation_cache-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

func copyEntries(in map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package offline

import (
	"bytes"
	"fmt"
	"io"
)

// memoryStore holds cached items in a map.
type memoryStore struct {
	items map[string][]byte
}

// NewMemoryCache creates an in-memory offline cache.
// maxSize is the maximum total size in bytes; must be positive.
func NewMemoryCache(fetcher Fetcher, maxSize int64) *Cache {
	return &Cache{
		fetcher: fetcher,
		store:   &memoryStore{items: make(map[string][]byte)},
		maxSize: maxSize,
	}
}

func (s *memoryStore) Put(key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.items[key] = data
	return int64(len(data)), nil
}

func (s *memoryStore) Remove(key string) { delete(s.items, key) }

func (s *memoryStore) Open(key string) (io.ReadCloser, error) {
	data, ok := s.items[key]
	if !ok {
		return nil, fmt.Errorf("not cached: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) Has(key string) (bool, error) {
	_, ok := s.items[key]
	return ok, nil
}

func (s *memoryStore) Len() (int, error) { return len(s.items), nil }

func (s *memoryStore) ContentSize() (int64, error) {
	var total int64
	for _, data := range s.items {
		total += int64(len(data))
	}
	return total, nil
}

func (s *memoryStore) Clear() error {
	clear(s.items)
	return nil
}

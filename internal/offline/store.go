package offline

import "io"

// cacheStore abstracts the storage mechanics for the offline cache.
// Items are addressed by the SHA-256 hex of their source URL.
// Concurrency is managed by the caller (Cache.mu), so stores
// do not need to be safe for concurrent use.
type cacheStore interface {
	// Put reads r to completion and stores it under key. Returns bytes written.
	Put(key string, r io.Reader) (int64, error)

	// Remove deletes the item stored under key (best-effort).
	Remove(key string)

	// Open returns a reader for the item stored under key.
	Open(key string) (io.ReadCloser, error)

	// Has reports whether key is stored.
	Has(key string) (bool, error)

	// Len returns the number of stored items.
	Len() (int, error)

	// ContentSize returns total bytes of all stored items.
	ContentSize() (int64, error)

	// Clear removes every stored item.
	Clear() error
}

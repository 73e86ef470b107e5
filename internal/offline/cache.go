package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"hadiqa-go/internal/hq"
)

// Fetcher downloads the bytes behind a media URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Cache implements hq.OfflineCache using a pluggable cacheStore
// for the storage mechanics. All shared logic lives here.
type Cache struct {
	fetcher Fetcher
	store   cacheStore
	maxSize int64
	mu      sync.Mutex
}

var _ hq.OfflineCache = (*Cache)(nil)

// Key returns the storage key for url.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// Add downloads url and stores it. Already cached urls are not fetched again.
// The body is spooled to a temp file before the lock is taken, and a result
// that would push the cache past its max size is discarded.
func (c *Cache) Add(ctx context.Context, url string) error {
	key := Key(url)

	c.mu.Lock()
	ok, err := c.store.Has(key)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checking cache: %w", err)
	}
	if ok {
		return nil
	}

	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	spool, n, err := spoolBody(body, c.maxSize)
	body.Close()
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()
	if n > c.maxSize {
		return fmt.Errorf("offline cache full: would exceed max size of %d bytes", c.maxSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.Put(key, spool); err != nil {
		c.store.Remove(key)
		return fmt.Errorf("storing %s: %w", url, err)
	}

	size, err := c.store.ContentSize()
	if err != nil {
		c.store.Remove(key)
		return fmt.Errorf("getting current size: %w", err)
	}
	if size > c.maxSize {
		c.store.Remove(key)
		return fmt.Errorf("offline cache full: would exceed max size of %d bytes", c.maxSize)
	}
	return nil
}

// spoolBody copies at most limit+1 bytes of body into a temp file and rewinds it.
func spoolBody(body io.Reader, limit int64) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "hadiqa-offline-*")
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(f, io.LimitReader(body, limit+1))
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return f, n, nil
}

func (c *Cache) Contains(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Has(Key(url))
}

func (c *Cache) Open(url string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.store.Open(Key(url))
	if err != nil {
		return nil, fmt.Errorf("opening cached %s: %w", url, err)
	}
	return r, nil
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clear()
}

func (c *Cache) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

func (c *Cache) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ContentSize()
}

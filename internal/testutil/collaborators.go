package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"hadiqa-go/internal/hq"
)

// RecordingUploadTarget keeps uploads in memory and returns portrait or
// landscape descriptors according to the request dimensions.
type RecordingUploadTarget struct {
	mu       sync.Mutex
	clock    hq.Clock
	Requests []hq.UploadRequest
	Bodies   [][]byte
	Err      error
}

func NewRecordingUploadTarget(clock hq.Clock) *RecordingUploadTarget {
	return &RecordingUploadTarget{clock: clock}
}

func (u *RecordingUploadTarget) Upload(_ context.Context, req hq.UploadRequest, r io.Reader, size int64) (*hq.UploadedResource, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	u.Requests = append(u.Requests, req)
	u.Bodies = append(u.Bodies, data)

	id := fmt.Sprintf("%s/upload-%d", req.Folder, len(u.Requests))
	return &hq.UploadedResource{
		PublicID:  id,
		SecureURL: "https://media.test/" + id + "." + req.Format,
		Format:    req.Format,
		Version:   u.clock.Now().Unix(),
		Width:     req.Width,
		Height:    req.Height,
		Caption:   req.Caption,
		Tags:      req.Tags,
		CreatedAt: u.clock.Now(),
	}, nil
}

func (u *RecordingUploadTarget) ValidateSetup(context.Context) error { return nil }

// MemoryOfflineCache is a map-backed offline cache whose downloads fail for
// any URL listed in Broken.
type MemoryOfflineCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	Broken map[string]bool
}

func NewMemoryOfflineCache() *MemoryOfflineCache {
	return &MemoryOfflineCache{items: map[string][]byte{}, Broken: map[string]bool{}}
}

func (c *MemoryOfflineCache) Add(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Broken[url] {
		return errors.New("download failed")
	}
	c.items[url] = []byte(url)
	return nil
}

func (c *MemoryOfflineCache) Contains(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[url]
	return ok, nil
}

func (c *MemoryOfflineCache) Open(url string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[url]
	if !ok {
		return nil, fmt.Errorf("not cached: %s", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *MemoryOfflineCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	return nil
}

func (c *MemoryOfflineCache) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), nil
}

func (c *MemoryOfflineCache) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, v := range c.items {
		n += int64(len(v))
	}
	return n, nil
}

// StubAnalyzer returns Insight, or Err when set, and records the media it saw.
type StubAnalyzer struct {
	Insight *hq.VideoInsight
	Err     error
	Seen    []string
}

func (a *StubAnalyzer) Analyze(_ context.Context, media []byte, mimeType string) (*hq.VideoInsight, error) {
	a.Seen = append(a.Seen, mimeType+":"+string(media))
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Insight, nil
}

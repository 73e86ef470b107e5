package upload

import (
	"context"
	"fmt"
	"io"
	"sync"

	"hadiqa-go/internal/hq"
)

// MemoryTarget is an in-memory implementation of hq.UploadTarget.
// It is useful for testing and for trying the CLI without a media host.
// This implementation is safe for concurrent use.
type MemoryTarget struct {
	name    string
	baseURL string
	clock   hq.Clock
	idgen   hq.IDGenerator

	mu        sync.RWMutex
	objects   map[string][]byte
	resources map[string]*hq.UploadedResource
}

// NewMemoryTarget creates a new in-memory upload target.
func NewMemoryTarget(name, baseURL string, clock hq.Clock, idgen hq.IDGenerator) *MemoryTarget {
	return &MemoryTarget{
		name:      name,
		baseURL:   baseURL,
		clock:     clock,
		idgen:     idgen,
		objects:   make(map[string][]byte),
		resources: make(map[string]*hq.UploadedResource),
	}
}

func (t *MemoryTarget) Upload(_ context.Context, req hq.UploadRequest, r io.Reader, size int64) (*hq.UploadedResource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	publicID := newPublicID(req, t.idgen)
	res := describe(req, publicID, t.baseURL, t.clock.Now())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[publicID] = data
	t.resources[publicID] = res
	return res, nil
}

// ValidateSetup always succeeds for the memory target.
func (t *MemoryTarget) ValidateSetup(context.Context) error {
	return nil
}

// Object returns the bytes uploaded under publicID.
func (t *MemoryTarget) Object(publicID string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, ok := t.objects[publicID]
	return data, ok
}

// Resources returns the number of stored uploads.
func (t *MemoryTarget) Resources() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.resources)
}

var _ hq.UploadTarget = (*MemoryTarget)(nil)

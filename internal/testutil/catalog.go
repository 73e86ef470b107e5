package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"hadiqa-go/internal/hq"
)

// FakeCatalogSource serves a fixed listing, or Err when set.
// Gate, when non-nil, blocks ListVideos until a value is received on it.
type FakeCatalogSource struct {
	mu      sync.Mutex
	entries []hq.VideoEntry
	err     error
	calls   int
	gates   []chan struct{}
}

func NewFakeCatalogSource(entries ...hq.VideoEntry) *FakeCatalogSource {
	return &FakeCatalogSource{entries: entries}
}

// SetEntries replaces the served listing.
func (s *FakeCatalogSource) SetEntries(entries ...hq.VideoEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

// SetError makes subsequent calls fail with err (nil to recover).
func (s *FakeCatalogSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Hold makes the next call block until the returned channel is closed.
// The blocked call returns the listing that was current when it started.
func (s *FakeCatalogSource) Hold() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates = append(s.gates, ch)
	return ch
}

// Calls returns the number of ListVideos calls.
func (s *FakeCatalogSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *FakeCatalogSource) ListVideos(ctx context.Context) ([]hq.VideoEntry, error) {
	s.mu.Lock()
	s.calls++
	entries, err := slices.Clone(s.entries), s.err
	var gate chan struct{}
	if len(s.gates) > 0 {
		gate = s.gates[0]
		s.gates = s.gates[1:]
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Short builds a portrait catalog entry.
func Short(id, title string) hq.VideoEntry {
	return entry(id, title, hq.KindShort)
}

// Long builds a landscape catalog entry.
func Long(id, title string) hq.VideoEntry {
	return entry(id, title, hq.KindLong)
}

func entry(id, title string, kind hq.Kind) hq.VideoEntry {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return hq.VideoEntry{
		ID:        id,
		PublicID:  id,
		URL:       "https://media.test/" + id + ".mp4",
		Kind:      kind,
		Title:     title,
		Category:  hq.DefaultCategory,
		CreatedAt: &created,
	}
}

package testutil

import (
	"context"
	"errors"
	"testing"

	"hadiqa-go/internal/database"
	"hadiqa-go/internal/hq"
)

// NewTestStateStore creates a new in-memory SQLite state store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStateStore(t *testing.T) hq.StateStore {
	t.Helper()

	s, err := database.NewSQLiteStateStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// ErrStoreUnavailable is returned by FailingStateStore writes.
var ErrStoreUnavailable = errors.New("state store unavailable")

// FailingStateStore wraps a store and fails every Put while FailPuts is set.
type FailingStateStore struct {
	hq.StateStore
	FailPuts bool
	Puts     int
}

func NewFailingStateStore(inner hq.StateStore) *FailingStateStore {
	return &FailingStateStore{StateStore: inner, FailPuts: true}
}

func (s *FailingStateStore) Put(ctx context.Context, key string, value []byte) error {
	s.Puts++
	if s.FailPuts {
		return ErrStoreUnavailable
	}
	return s.StateStore.Put(ctx, key, value)
}

package hq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by StateStore.Get when a key has never been written.
var ErrNotFound = errors.New("not found")

// Persisted state keys. Each holds one JSON-encoded blob.
const (
	KeyInteractions = "al-hadiqa-interactions"
	KeyDeletedIDs   = "al-hadiqa-deleted-ids"
	KeyCategories   = "al-hadiqa-categories"
	KeyChatHistory  = "al-hadiqa-ai-history"
	KeyVoiceUsage   = "al-hadiqa-voice-limit-v3"
	KeyOfflineReady = "al-hadiqa-offline-ready"
	KeyCatalogCache = "app_videos_cache"
)

// AllStateKeys lists every key that makes up a user's local state.
// The catalog cache is derived from the remote source and is not included.
var AllStateKeys = []string{
	KeyInteractions,
	KeyDeletedIDs,
	KeyCategories,
	KeyChatHistory,
	KeyVoiceUsage,
	KeyOfflineReady,
}

// StateStore is a small key/blob store for locally persisted state.
// Put replaces the whole value for a key in a single write.
type StateStore interface {
	// Get returns the stored blob, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}

// KeyLister is implemented by stores that can enumerate their keys.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON decodes the blob stored under key into v.
// It returns ErrNotFound if the key is absent.
func GetJSON(ctx context.Context, store StateStore, key string, v any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, store StateStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

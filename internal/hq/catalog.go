package hq

import (
	"context"
	"errors"
)

// CatalogSource lists the videos currently published on the remote media host.
type CatalogSource interface {
	ListVideos(ctx context.Context) ([]VideoEntry, error)
}

// CatalogFetcher wraps a CatalogSource with a last-known-good fallback kept
// in the state store.
type CatalogFetcher struct {
	source CatalogSource
	store  StateStore
	logger Logger
}

// NewCatalogFetcher creates a fetcher that caches successful listings in store.
func NewCatalogFetcher(source CatalogSource, store StateStore, logger Logger) *CatalogFetcher {
	return &CatalogFetcher{source: source, store: store, logger: logger}
}

// FetchCatalog returns the remote listing and overwrites the cache with it.
// Remote failures are not returned: the cached listing (or an empty one) is
// served instead. Only context cancellation is reported as an error.
func (f *CatalogFetcher) FetchCatalog(ctx context.Context) ([]VideoEntry, error) {
	entries, fresh, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if fresh {
		f.Store(ctx, entries)
	}
	return entries, nil
}

// Fetch is FetchCatalog without the cache write. fresh reports whether the
// entries came from the source rather than the cache, so a caller can decide
// whether they should become the new fallback.
func (f *CatalogFetcher) Fetch(ctx context.Context) (entries []VideoEntry, fresh bool, err error) {
	entries, err = f.source.ListVideos(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		f.logger.Warn("catalog fetch failed, serving cache", "error", err)
		return f.Cached(ctx), false, nil
	}
	if entries == nil {
		entries = []VideoEntry{}
	}
	f.logger.Debug("catalog fetched", "count", len(entries))
	return entries, true, nil
}

// Store makes entries the cached fallback listing. Failures are logged.
func (f *CatalogFetcher) Store(ctx context.Context, entries []VideoEntry) {
	if err := PutJSON(ctx, f.store, KeyCatalogCache, entries); err != nil {
		f.logger.Warn("caching catalog failed", "error", err)
	}
}

// Cached returns the last successful listing, or an empty slice.
func (f *CatalogFetcher) Cached(ctx context.Context) []VideoEntry {
	var entries []VideoEntry
	if err := GetJSON(ctx, f.store, KeyCatalogCache, &entries); err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.logger.Warn("reading catalog cache failed", "error", err)
		}
		return []VideoEntry{}
	}
	if entries == nil {
		return []VideoEntry{}
	}
	return entries
}

// ClearCache drops the cached listing.
func (f *CatalogFetcher) ClearCache(ctx context.Context) error {
	return f.store.Delete(ctx, KeyCatalogCache)
}

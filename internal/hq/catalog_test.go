package hq_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/testutil"
)

func TestCatalogFetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("success overwrites cache", func(t *testing.T) {
		store := testutil.NewTestStateStore(t)
		src := testutil.NewFakeCatalogSource(testutil.Short("a", "A"))
		f := hq.NewCatalogFetcher(src, store, hq.NewNopLogger())

		got, err := f.FetchCatalog(ctx)
		if err != nil || len(got) != 1 {
			t.Fatalf("FetchCatalog() = %v, %v", ids(got), err)
		}

		src.SetEntries(testutil.Long("b", "B"))
		f.FetchCatalog(ctx)
		if cached := ids(f.Cached(ctx)); len(cached) != 1 || cached[0] != "b" {
			t.Errorf("Cached() = %v", cached)
		}
	})

	t.Run("failure serves cache", func(t *testing.T) {
		store := testutil.NewTestStateStore(t)
		src := testutil.NewFakeCatalogSource(testutil.Short("a", "A"))
		f := hq.NewCatalogFetcher(src, store, hq.NewNopLogger())
		f.FetchCatalog(ctx)

		src.SetError(errors.New("503"))
		got, err := f.FetchCatalog(ctx)
		if err != nil {
			t.Fatalf("FetchCatalog() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("FetchCatalog() = %v, want cached [a]", ids(got))
		}
	})

	t.Run("repeated failures keep serving the cache", func(t *testing.T) {
		store := testutil.NewTestStateStore(t)
		src := testutil.NewFakeCatalogSource(testutil.Short("v1", "one"), testutil.Long("v2", "two"))
		f := hq.NewCatalogFetcher(src, store, hq.NewNopLogger())
		f.FetchCatalog(ctx)

		src.SetError(errors.New("503"))
		for i := 1; i <= 2; i++ {
			got, err := f.FetchCatalog(ctx)
			if err != nil {
				t.Fatalf("call %d: FetchCatalog() error = %v", i, err)
			}
			if !reflect.DeepEqual(ids(got), []string{"v1", "v2"}) {
				t.Errorf("call %d: FetchCatalog() = %v, want [v1 v2]", i, ids(got))
			}
		}
	})

	t.Run("fetch does not write the cache", func(t *testing.T) {
		store := testutil.NewTestStateStore(t)
		src := testutil.NewFakeCatalogSource(testutil.Short("a", "A"))
		f := hq.NewCatalogFetcher(src, store, hq.NewNopLogger())

		got, fresh, err := f.Fetch(ctx)
		if err != nil || !fresh || len(got) != 1 {
			t.Fatalf("Fetch() = %v, %v, %v", ids(got), fresh, err)
		}
		if len(f.Cached(ctx)) != 0 {
			t.Error("Fetch() wrote the cache")
		}

		f.Store(ctx, got)
		src.SetError(errors.New("down"))
		got, fresh, _ = f.Fetch(ctx)
		if fresh || !reflect.DeepEqual(ids(got), []string{"a"}) {
			t.Errorf("Fetch() after failure = %v fresh=%v, want cached [a]", ids(got), fresh)
		}
	})

	t.Run("failure without cache is empty", func(t *testing.T) {
		src := testutil.NewFakeCatalogSource()
		src.SetError(errors.New("offline"))
		f := hq.NewCatalogFetcher(src, testutil.NewTestStateStore(t), hq.NewNopLogger())

		got, err := f.FetchCatalog(ctx)
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("FetchCatalog() = %v, %v", got, err)
		}
	})

	t.Run("cancellation is returned", func(t *testing.T) {
		src := testutil.NewFakeCatalogSource()
		src.Hold()
		f := hq.NewCatalogFetcher(src, testutil.NewTestStateStore(t), hq.NewNopLogger())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := f.FetchCatalog(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("clear cache", func(t *testing.T) {
		store := testutil.NewTestStateStore(t)
		f := hq.NewCatalogFetcher(testutil.NewFakeCatalogSource(testutil.Short("a", "A")), store, hq.NewNopLogger())
		f.FetchCatalog(ctx)
		if err := f.ClearCache(ctx); err != nil {
			t.Fatalf("ClearCache() error = %v", err)
		}
		if len(f.Cached(ctx)) != 0 {
			t.Error("cache not cleared")
		}
	})
}

package hq_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/testutil"
)

type fixture struct {
	svc      *hq.HQService
	store    hq.StateStore
	source   *testutil.FakeCatalogSource
	uploads  *testutil.RecordingUploadTarget
	offline  *testutil.MemoryOfflineCache
	analyzer *testutil.StubAnalyzer
	media    *testutil.MockMediaManager
	clock    *testutil.StubClock
}

func newFixture(t *testing.T, entries ...hq.VideoEntry) *fixture {
	t.Helper()
	clock := testutil.FixedClock()
	f := &fixture{
		store:    testutil.NewTestStateStore(t),
		source:   testutil.NewFakeCatalogSource(entries...),
		uploads:  testutil.NewRecordingUploadTarget(clock),
		offline:  testutil.NewMemoryOfflineCache(),
		analyzer: &testutil.StubAnalyzer{},
		media:    testutil.NewMockMediaManager(),
		clock:    clock,
	}
	f.svc = hq.NewHQService(f.store, f.source, f.uploads, f.offline, f.analyzer, f.media,
		hq.NewNopLogger(), clock)
	f.svc.Open(context.Background())
	return f
}

func TestHQService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("loads catalog and filters deleted", func(t *testing.T) {
		f := newFixture(t, scenarioCatalog()...)
		f.svc.DeleteVideo(ctx, "b")

		got, err := f.svc.Refresh(ctx)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if !reflect.DeepEqual(ids(got), []string{"a", "c"}) {
			t.Errorf("Refresh() = %v", ids(got))
		}
	})

	t.Run("stale response is discarded", func(t *testing.T) {
		f := newFixture(t, testutil.Short("old", "old"))
		release := f.source.Hold()

		slowDone := make(chan []hq.VideoEntry)
		go func() {
			got, _ := f.svc.Refresh(ctx)
			slowDone <- got
		}()

		// Wait for the slow call to be in flight before issuing the fast one.
		deadline := time.Now().Add(5 * time.Second)
		for f.source.Calls() < 1 {
			if time.Now().After(deadline) {
				t.Fatal("slow refresh never started")
			}
			time.Sleep(time.Millisecond)
		}

		f.source.SetEntries(testutil.Short("new", "new"))
		if got, _ := f.svc.Refresh(ctx); !reflect.DeepEqual(ids(got), []string{"new"}) {
			t.Fatalf("fast Refresh() = %v", ids(got))
		}

		close(release)
		slow := <-slowDone
		if !reflect.DeepEqual(ids(slow), []string{"new"}) {
			t.Errorf("slow Refresh() returned %v, want current catalog", ids(slow))
		}
		if !reflect.DeepEqual(ids(f.svc.Catalog()), []string{"new"}) {
			t.Errorf("Catalog() = %v, stale response applied", ids(f.svc.Catalog()))
		}

		reopened := hq.NewHQService(f.store, testutil.NewFakeCatalogSource(), nil, nil, nil, nil,
			hq.NewNopLogger(), f.clock)
		reopened.Open(ctx)
		if got := ids(reopened.Catalog()); !reflect.DeepEqual(got, []string{"new"}) {
			t.Errorf("cached catalog after reopen = %v, stale response was cached", got)
		}
	})

	t.Run("open seeds from cache", func(t *testing.T) {
		f := newFixture(t, testutil.Short("a", "A"))
		f.svc.Refresh(ctx)

		svc := hq.NewHQService(f.store, testutil.NewFakeCatalogSource(), nil, nil, nil, nil,
			hq.NewNopLogger(), f.clock)
		svc.Open(ctx)
		if !reflect.DeepEqual(ids(svc.Catalog()), []string{"a"}) {
			t.Errorf("Catalog() = %v", ids(svc.Catalog()))
		}
	})

	t.Run("hard reset clears cache and toasts", func(t *testing.T) {
		f := newFixture(t, testutil.Short("a", "A"))
		f.svc.Refresh(ctx)
		f.source.SetError(errors.New("down"))

		got, err := f.svc.HardReset(ctx)
		if err != nil {
			t.Fatalf("HardReset() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("HardReset() = %v, want empty after cache cleared", ids(got))
		}
		if f.svc.Router().State().Toast == "" {
			t.Error("no toast after hard reset")
		}
	})
}

func TestHQService_Interactions(t *testing.T) {
	ctx := context.Background()

	t.Run("mutations persist and update feeds", func(t *testing.T) {
		f := newFixture(t, scenarioCatalog()...)
		f.svc.Refresh(ctx)

		f.svc.Like(ctx, "a")
		f.svc.Dislike(ctx, "b")
		f.svc.Save(ctx, "c")
		f.svc.RecordProgress(ctx, "c", 0.4)

		feeds := f.svc.Feeds()
		if !reflect.DeepEqual(ids(feeds.HomeShorts), []string{"c"}) || len(feeds.HomeLongs) != 0 {
			t.Errorf("home = %v / %v", ids(feeds.HomeShorts), ids(feeds.HomeLongs))
		}
		if !reflect.DeepEqual(ids(f.svc.Feed(hq.ViewUnwatched)), []string{"c"}) {
			t.Errorf("unwatched = %v", ids(f.svc.Feed(hq.ViewUnwatched)))
		}

		reloaded := hq.NewInteractionStore(f.store, hq.NewNopLogger()).Load(ctx)
		if !reflect.DeepEqual(reloaded, f.svc.Interactions()) {
			t.Errorf("persisted %+v, in memory %+v", reloaded, f.svc.Interactions())
		}

		f.svc.Restore(ctx, "b")
		f.svc.Unlike(ctx, "a")
		f.svc.Unsave(ctx, "c")
		st := f.svc.Interactions()
		if len(st.LikedIDs)+len(st.DislikedIDs)+len(st.SavedIDs) != 0 {
			t.Errorf("state after toggles = %+v", st)
		}
	})

	t.Run("blank id rejected", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.Like(ctx, "  "); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("persistence failure is swallowed", func(t *testing.T) {
		store := testutil.NewFailingStateStore(testutil.NewTestStateStore(t))
		svc := hq.NewHQService(store, testutil.NewFakeCatalogSource(), nil, nil, nil, nil,
			hq.NewNopLogger(), testutil.FixedClock())

		if err := svc.Like(ctx, "a"); err != nil {
			t.Fatalf("Like() error = %v", err)
		}
		if !svc.Interactions().IsLiked("a") || store.Puts != 1 {
			t.Error("in-memory state should change despite store failure")
		}
	})

	t.Run("feed for view without feed is empty", func(t *testing.T) {
		f := newFixture(t)
		if got := f.svc.Feed(hq.ViewPrivacy); got == nil || len(got) != 0 {
			t.Errorf("Feed(privacy) = %v", got)
		}
	})
}

func TestHQService_Play(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(ctx)

	o, err := f.svc.PlayShort("c", hq.ViewHome)
	if err != nil {
		t.Fatalf("PlayShort() error = %v", err)
	}
	if o.Len() != 2 || o.Index() != 1 {
		t.Errorf("shorts overlay len=%d index=%d", o.Len(), o.Index())
	}
	if f.svc.Router().Shorts() != o {
		t.Error("overlay not registered with router")
	}

	o.Like(ctx)
	if !f.svc.Interactions().IsLiked("c") {
		t.Error("overlay action did not reach service")
	}

	long, err := f.svc.PlayLong("b", hq.ViewHome)
	if err != nil || long.Current().ID != "b" {
		t.Fatalf("PlayLong() = %v, %v", long, err)
	}

	if _, err := f.svc.PlayShort("missing", hq.ViewHome); !errors.Is(err, hq.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHQService_PlayShortOutsideViewFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(ctx)
	f.svc.Like(ctx, "c")

	o, err := f.svc.PlayShort("c", hq.ViewHome)
	if err != nil {
		t.Fatalf("PlayShort() error = %v", err)
	}
	if o.Current().ID != "c" {
		t.Fatalf("overlay opened on %q, want requested %q", o.Current().ID, "c")
	}

	if _, err := o.ReportProgress(ctx, "c", 0.5); err != nil {
		t.Fatalf("ReportProgress() error = %v", err)
	}
	o.Save(ctx)
	st := f.svc.Interactions()
	if st.ProgressOf("c") != 0.5 || !st.IsSaved("c") {
		t.Errorf("actions did not land on c: progress=%v saved=%v", st.ProgressOf("c"), st.IsSaved("c"))
	}
	if st.IsSaved("a") {
		t.Error("save landed on a")
	}
}

func TestHQService_Search(t *testing.T) {
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(context.Background())
	if got := ids(f.svc.Search("الهمس")); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Search() = %v", got)
	}
}

func TestHQService_DeleteVideo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(ctx)
	f.svc.Like(ctx, "a")

	if err := f.svc.DeleteVideo(ctx, "a"); err != nil {
		t.Fatalf("DeleteVideo() error = %v", err)
	}
	if _, ok := hq.FindEntry(f.svc.Catalog(), "a"); ok {
		t.Error("deleted entry still in catalog")
	}
	if len(f.svc.Feeds().Liked) != 0 {
		t.Error("deleted entry still in liked feed")
	}
	if !f.svc.Interactions().IsLiked("a") {
		t.Error("delete should not touch interaction state")
	}

	var stored []string
	hq.GetJSON(ctx, f.store, hq.KeyDeletedIDs, &stored)
	if !reflect.DeepEqual(stored, []string{"a"}) {
		t.Errorf("stored deleted ids = %v", stored)
	}

	f.svc.UndeleteVideo(ctx, "a")
	f.svc.Refresh(ctx)
	if _, ok := hq.FindEntry(f.svc.Catalog(), "a"); !ok {
		t.Error("undeleted entry missing after refresh")
	}
	if len(f.svc.DeletedIDs()) != 0 {
		t.Errorf("DeletedIDs() = %v", f.svc.DeletedIDs())
	}
}

func TestHQService_Categories(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t)
		if !reflect.DeepEqual(f.svc.Categories(), hq.DefaultCategories) {
			t.Errorf("Categories() = %v", f.svc.Categories())
		}
	})

	t.Run("add and remove persist", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.AddCategory(ctx, " مقابر "); err != nil {
			t.Fatalf("AddCategory() error = %v", err)
		}
		if err := f.svc.AddCategory(ctx, "مقابر"); err == nil {
			t.Error("duplicate accepted")
		}
		if err := f.svc.AddCategory(ctx, " "); err == nil {
			t.Error("blank accepted")
		}
		if err := f.svc.RemoveCategory(ctx, "غموض"); err != nil {
			t.Fatalf("RemoveCategory() error = %v", err)
		}
		if err := f.svc.RemoveCategory(ctx, "غموض"); !errors.Is(err, hq.ErrNotFound) {
			t.Errorf("second remove error = %v", err)
		}

		svc := hq.NewHQService(f.store, testutil.NewFakeCatalogSource(), nil, nil, nil, nil,
			hq.NewNopLogger(), f.clock)
		svc.Open(ctx)
		got := svc.Categories()
		if len(got) != len(hq.DefaultCategories) || got[len(got)-1] != "مقابر" {
			t.Errorf("reloaded categories = %v", got)
		}
	})
}

func TestHQService_Upload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(ctx)
	f.media.AddFile("/videos/ghost.mp4", []byte("moov"))
	file, _ := f.media.Resolve("/videos/ghost.mp4")

	entry, err := f.svc.Upload(ctx, file, hq.UploadMeta{Width: 720, Height: 1280})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if entry.Kind != hq.KindShort || entry.Title != hq.NewVideoTitle || entry.Category != hq.DefaultCategories[0] {
		t.Errorf("entry = %+v", entry)
	}
	if f.svc.Catalog()[0].ID != entry.ID {
		t.Error("upload not prepended to catalog")
	}
	if f.source.Calls() != 1 {
		t.Error("upload should not re-fetch the catalog")
	}

	req := f.uploads.Requests[0]
	if req.Folder != hq.UploadFolder || req.Caption != hq.UntitledCaption {
		t.Errorf("request = %+v", req)
	}
	if !reflect.DeepEqual(req.Tags, []string{hq.CommonTag, hq.DefaultCategories[0]}) {
		t.Errorf("tags = %v", req.Tags)
	}
	if string(f.uploads.Bodies[0]) != "moov" {
		t.Errorf("body = %q", f.uploads.Bodies[0])
	}

	t.Run("explicit metadata", func(t *testing.T) {
		entry, _ := f.svc.Upload(ctx, file, hq.UploadMeta{Title: "الغرفة", Category: "غموض", Width: 1920, Height: 1080})
		if entry.Kind != hq.KindLong || entry.Title != "الغرفة" || entry.Category != "غموض" {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("target failure", func(t *testing.T) {
		f.uploads.Err = errors.New("quota")
		before := len(f.svc.Catalog())
		if _, err := f.svc.Upload(ctx, file, hq.UploadMeta{}); err == nil {
			t.Error("expected error")
		}
		if len(f.svc.Catalog()) != before {
			t.Error("failed upload changed catalog")
		}
	})
}

func TestHQService_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.media.AddFile("/videos/ghost.mp4", []byte("moov"))
	file, _ := f.media.Resolve("/videos/ghost.mp4")

	t.Run("returns analyzer insight", func(t *testing.T) {
		f.analyzer.Insight = &hq.VideoInsight{Summary: "s", HorrorLevel: 9, Tags: []string{"x"}}
		got := f.svc.Analyze(ctx, file)
		if got.HorrorLevel != 9 {
			t.Errorf("Analyze() = %+v", got)
		}
		if f.analyzer.Seen[0] != "video/mp4:moov" {
			t.Errorf("analyzer saw %q", f.analyzer.Seen[0])
		}
	})

	t.Run("failure yields placeholder", func(t *testing.T) {
		f.analyzer.Err = errors.New("boom")
		if got := f.svc.Analyze(ctx, file); !reflect.DeepEqual(got, hq.PlaceholderInsight()) {
			t.Errorf("Analyze() = %+v", got)
		}
	})

	t.Run("nil analyzer yields placeholder", func(t *testing.T) {
		svc := hq.NewHQService(f.store, f.source, nil, nil, nil, f.media,
			hq.NewNopLogger(), f.clock)
		if got := svc.Analyze(ctx, file); got.Summary != hq.PlaceholderInsight().Summary {
			t.Errorf("Analyze() = %+v", got)
		}
	})
}

func TestHQService_OfflineCache(t *testing.T) {
	ctx := context.Background()
	var entries []hq.VideoEntry
	for i := range 12 {
		entries = append(entries, testutil.Short(string(rune('a'+i)), "t"))
	}
	f := newFixture(t, entries...)
	f.svc.Refresh(ctx)
	f.offline.Broken[entries[3].URL] = true

	n, err := f.svc.WarmOfflineCache(ctx)
	if err != nil {
		t.Fatalf("WarmOfflineCache() error = %v", err)
	}
	if n != hq.OfflineBatchSize-1 {
		t.Errorf("cached %d, want %d", n, hq.OfflineBatchSize-1)
	}
	if ok, _ := f.offline.Contains(entries[10].URL); ok {
		t.Error("cached beyond batch size")
	}
	if !f.svc.OfflineReady(ctx) {
		t.Error("offline flag not set")
	}

	if err := f.svc.ClearOfflineCache(ctx); err != nil {
		t.Fatalf("ClearOfflineCache() error = %v", err)
	}
	if count, _ := f.offline.Count(); count != 0 || f.svc.OfflineReady(ctx) {
		t.Error("cache or flag not cleared")
	}

	t.Run("cancelled context stops warming", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := f.svc.WarmOfflineCache(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestHQService_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t, scenarioCatalog()...)
	src.svc.Like(ctx, "a")
	src.svc.DeleteVideo(ctx, "b")
	src.svc.AddCategory(ctx, "مقابر")

	bundle, err := src.svc.ExportState(ctx)
	if err != nil {
		t.Fatalf("ExportState() error = %v", err)
	}
	if _, ok := bundle[hq.KeyCatalogCache]; ok {
		t.Error("catalog cache exported")
	}

	data, _ := json.Marshal(bundle)
	var decoded hq.StateBundle
	json.Unmarshal(data, &decoded)

	dst := newFixture(t)
	if err := dst.svc.ImportState(ctx, decoded); err != nil {
		t.Fatalf("ImportState() error = %v", err)
	}
	if !dst.svc.Interactions().IsLiked("a") {
		t.Error("interactions not imported")
	}
	if !reflect.DeepEqual(dst.svc.DeletedIDs(), []string{"b"}) {
		t.Errorf("DeletedIDs() = %v", dst.svc.DeletedIDs())
	}
	if cats := dst.svc.Categories(); cats[len(cats)-1] != "مقابر" {
		t.Errorf("Categories() = %v", cats)
	}

	t.Run("unknown key rejected", func(t *testing.T) {
		err := dst.svc.ImportState(ctx, hq.StateBundle{"evil": json.RawMessage(`1`)})
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestHQService_OfflineStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)

	st, err := f.svc.OfflineStatus(ctx)
	if err != nil {
		t.Fatalf("OfflineStatus() error = %v", err)
	}
	if st.Ready || st.Count != 0 || st.RefreshedAt != nil {
		t.Errorf("status before refresh = %+v", st)
	}

	f.svc.Refresh(ctx)
	f.clock.Advance(time.Hour)
	f.svc.Refresh(ctx)
	f.svc.WarmOfflineCache(ctx)

	st, _ = f.svc.OfflineStatus(ctx)
	if !st.Ready || st.Count != 3 || st.Bytes == 0 {
		t.Errorf("status after warm = %+v", st)
	}
	if st.RefreshedAt == nil || !st.RefreshedAt.Equal(f.clock.Now()) {
		t.Errorf("RefreshedAt = %v, want %v", st.RefreshedAt, f.clock.Now())
	}
}

func TestHQService_OpenOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scenarioCatalog()...)
	f.svc.Refresh(ctx)

	if _, _, err := f.svc.OpenOffline("missing"); !errors.Is(err, hq.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
	if _, _, err := f.svc.OpenOffline("a"); !errors.Is(err, hq.ErrNotCached) {
		t.Errorf("uncached error = %v, want ErrNotCached", err)
	}

	f.svc.WarmOfflineCache(ctx)
	entry, r, err := f.svc.OpenOffline("a")
	if err != nil {
		t.Fatalf("OpenOffline() error = %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if entry.ID != "a" || string(data) != entry.URL {
		t.Errorf("OpenOffline() = %s, %q", entry.ID, data)
	}
}

func TestHQService_SwitchLong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, append(scenarioCatalog(), testutil.Long("d", "المقبرة"))...)
	f.svc.Refresh(ctx)

	if _, err := f.svc.SwitchLong("d"); !errors.Is(err, hq.ErrNoOverlay) {
		t.Errorf("error = %v, want ErrNoOverlay", err)
	}

	f.svc.PlayLong("b", hq.ViewHome)
	o, err := f.svc.SwitchLong("d")
	if err != nil {
		t.Fatalf("SwitchLong() error = %v", err)
	}
	if o.Current().ID != "d" || !reflect.DeepEqual(ids(o.Suggestions()), []string{"b"}) {
		t.Errorf("current=%s suggestions=%v", o.Current().ID, ids(o.Suggestions()))
	}
	if _, err := f.svc.SwitchLong("missing"); !errors.Is(err, hq.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// plainStore hides the Keys method of the wrapped store.
type plainStore struct {
	hq.StateStore
}

func TestHQService_StoredKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("listing store", func(t *testing.T) {
		f := newFixture(t, scenarioCatalog()...)
		f.svc.Like(ctx, "a")
		f.store.Put(ctx, "foreign", []byte(`1`))

		keys, err := f.svc.StoredKeys(ctx)
		if err != nil {
			t.Fatalf("StoredKeys() error = %v", err)
		}
		if !reflect.DeepEqual(keys, []string{hq.KeyInteractions, "foreign"}) {
			t.Errorf("StoredKeys() = %v", keys)
		}

		bundle, err := f.svc.ExportState(ctx)
		if err != nil {
			t.Fatalf("ExportState() error = %v", err)
		}
		if _, ok := bundle["foreign"]; ok || len(bundle) != 1 {
			t.Errorf("bundle keys = %v", reflect.ValueOf(bundle).MapKeys())
		}
	})

	t.Run("store without key listing", func(t *testing.T) {
		store := plainStore{testutil.NewTestStateStore(t)}
		svc := hq.NewHQService(store, testutil.NewFakeCatalogSource(), nil, nil, nil, nil,
			hq.NewNopLogger(), testutil.FixedClock())
		svc.Open(ctx)
		svc.AddCategory(ctx, "مقابر")
		store.Put(ctx, "foreign", []byte(`1`))

		keys, err := svc.StoredKeys(ctx)
		if err != nil {
			t.Fatalf("StoredKeys() error = %v", err)
		}
		if !reflect.DeepEqual(keys, []string{hq.KeyCategories}) {
			t.Errorf("StoredKeys() = %v", keys)
		}
	})
}

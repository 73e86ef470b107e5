package hq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultCategories seeds the category list on first run.
var DefaultCategories = []string{"رعب حقيقي", "قصص رعب", "غموض", "ما وراء الطبيعة", "أرشيف المطور"}

// OfflineBatchSize is how many catalog entries WarmOfflineCache downloads.
const OfflineBatchSize = 10

// MaxAnalyzeBytes bounds the media read into memory for AI analysis.
const MaxAnalyzeBytes = 20 << 20

// ErrNotCached is returned by OpenOffline for clips without a local copy.
var ErrNotCached = errors.New("not available offline")

// ErrNoOverlay is returned when an overlay action finds no overlay open.
var ErrNoOverlay = errors.New("no overlay open")

// HQService is the orchestration layer that reconciles the remote catalog
// with the locally persisted user state, and backs both the CLI and the HTTP API.
// It is safe for concurrent use.
type HQService struct {
	store        StateStore
	fetcher      *CatalogFetcher
	interactions *InteractionStore
	uploads      UploadTarget
	offline      OfflineCache
	analyzer     Analyzer
	media        MediaManager
	router       *Router
	logger       Logger
	clock        Clock

	mu          sync.Mutex
	catalog     []VideoEntry
	state       InteractionState
	deleted     []string
	categories  []string
	issuedSeq   uint64
	appliedSeq  uint64
	refreshedAt time.Time
}

// NewHQService creates a new HQService with the provided dependencies.
// analyzer may be nil, in which case every analysis yields PlaceholderInsight.
func NewHQService(store StateStore, source CatalogSource, uploads UploadTarget, offline OfflineCache, analyzer Analyzer, media MediaManager, logger Logger, clock Clock) *HQService {
	return &HQService{
		store:        store,
		fetcher:      NewCatalogFetcher(source, store, logger),
		interactions: NewInteractionStore(store, logger),
		uploads:      uploads,
		offline:      offline,
		analyzer:     analyzer,
		media:        media,
		router:       NewRouter(clock),
		logger:       logger,
		clock:        clock,
		catalog:      []VideoEntry{},
		state:        NewInteractionState(),
		deleted:      []string{},
		categories:   append([]string{}, DefaultCategories...),
	}
}

// Open loads persisted state and seeds the catalog from the cache, without
// touching the network. Call Refresh to fetch the live catalog.
func (s *HQService) Open(ctx context.Context) {
	state := s.interactions.Load(ctx)

	deleted := []string{}
	if err := GetJSON(ctx, s.store, KeyDeletedIDs, &deleted); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("loading deleted ids failed", "error", err)
		deleted = []string{}
	}

	categories := append([]string{}, DefaultCategories...)
	var stored []string
	if err := GetJSON(ctx, s.store, KeyCategories, &stored); err == nil && stored != nil {
		categories = stored
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("loading categories failed", "error", err)
	}

	cached := s.fetcher.Cached(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.deleted = deleted
	s.categories = categories
	s.catalog = FilterDeleted(cached, deleted)
}

// Router returns the view router owned by this service.
func (s *HQService) Router() *Router {
	return s.router
}

// Refresh fetches the catalog and makes it active. Each call takes a sequence
// number; a response that completes after a newer one was applied is dropped.
// It returns the active catalog after the call.
func (s *HQService) Refresh(ctx context.Context) ([]VideoEntry, error) {
	s.mu.Lock()
	s.issuedSeq++
	seq := s.issuedSeq
	s.mu.Unlock()

	entries, fresh, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.appliedSeq {
		s.logger.Debug("discarding stale catalog response", "seq", seq, "applied", s.appliedSeq)
		return slices.Clone(s.catalog), nil
	}
	s.appliedSeq = seq
	if fresh {
		s.fetcher.Store(ctx, entries)
	}
	s.catalog = FilterDeleted(entries, s.deleted)
	s.refreshedAt = s.clock.Now()
	s.logger.Info("catalog refreshed", "seq", seq, "count", len(s.catalog))
	return slices.Clone(s.catalog), nil
}

// HardReset drops the cached catalog and fetches it again.
func (s *HQService) HardReset(ctx context.Context) ([]VideoEntry, error) {
	if err := s.fetcher.ClearCache(ctx); err != nil {
		s.logger.Warn("clearing catalog cache failed", "error", err)
	}
	entries, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	s.router.ShowToast("تم مسح الكاش وتجديد الرعب")
	return entries, nil
}

// Catalog returns the active catalog.
func (s *HQService) Catalog() []VideoEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.catalog)
}

// Interactions returns a copy of the current interaction state.
func (s *HQService) Interactions() InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Feeds derives every feed from the current catalog and interaction state.
func (s *HQService) Feeds() DerivedFeeds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeriveFeeds(s.catalog, s.state, s.deleted)
}

// Feed returns the feed for v. Views without a feed return an empty slice.
func (s *HQService) Feed(v View) []VideoEntry {
	out := s.Feeds().ForView(v)
	if out == nil {
		return []VideoEntry{}
	}
	return out
}

// Search matches query against titles in the active catalog.
func (s *HQService) Search(query string) []VideoEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Search(s.catalog, query)
}

// Like marks id as liked.
func (s *HQService) Like(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "like", func(st InteractionState) InteractionState { return st.Like(id) })
}

// Unlike clears a like.
func (s *HQService) Unlike(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "unlike", func(st InteractionState) InteractionState { return st.Unlike(id) })
}

// Dislike hides id from the home feed.
func (s *HQService) Dislike(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "dislike", func(st InteractionState) InteractionState { return st.Dislike(id) })
}

// Save bookmarks id.
func (s *HQService) Save(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "save", func(st InteractionState) InteractionState { return st.Save(id) })
}

// Unsave removes a bookmark.
func (s *HQService) Unsave(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "unsave", func(st InteractionState) InteractionState { return st.Unsave(id) })
}

// Restore un-hides a disliked video.
func (s *HQService) Restore(ctx context.Context, id string) error {
	return s.mutate(ctx, id, "restore", func(st InteractionState) InteractionState { return st.Restore(id) })
}

// RecordProgress stores the furthest watch position for id.
func (s *HQService) RecordProgress(ctx context.Context, id string, progress float64) error {
	return s.mutate(ctx, id, "progress", func(st InteractionState) InteractionState {
		return st.RecordProgress(id, progress)
	})
}

var _ InteractionSink = (*HQService)(nil)

// mutate replaces the interaction state with fn(state) and persists the result.
// Persistence failures are logged by the store and otherwise ignored.
func (s *HQService) mutate(ctx context.Context, id, action string, fn func(InteractionState) InteractionState) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: video id is required", action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	_ = s.interactions.Save(ctx, s.state)
	s.logger.Debug("interaction recorded", "action", action, "id", id)
	return nil
}

// PlayShort opens the shorts overlay at id, seeded with the shorts of view's feed.
func (s *HQService) PlayShort(id string, view View) (*ShortsOverlay, error) {
	entry, list, err := s.playable(id, view, KindShort)
	if err != nil {
		return nil, err
	}
	o := NewShortsOverlay(entry, list, s)
	s.router.OpenShorts(o)
	return o, nil
}

// PlayLong opens the long-form overlay at id, suggesting the long clips of view's feed.
func (s *HQService) PlayLong(id string, view View) (*LongOverlay, error) {
	entry, list, err := s.playable(id, view, KindLong)
	if err != nil {
		return nil, err
	}
	o := NewLongOverlay(entry, list, s)
	s.router.OpenLong(o)
	return o, nil
}

// SwitchLong plays id in the open long-form overlay, keeping its suggestions.
func (s *HQService) SwitchLong(id string) (*LongOverlay, error) {
	o := s.router.Long()
	if o == nil {
		return nil, ErrNoOverlay
	}
	s.mu.Lock()
	entry, ok := FindEntry(s.catalog, id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	o.Switch(entry)
	return o, nil
}

func (s *HQService) playable(id string, view View, kind Kind) (VideoEntry, []VideoEntry, error) {
	s.mu.Lock()
	entry, ok := FindEntry(s.catalog, id)
	s.mu.Unlock()
	if !ok {
		return VideoEntry{}, nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return entry, FilterKind(s.Feed(view), kind), nil
}

// DeleteVideo soft-deletes id: it disappears from the active catalog now and
// from every later fetch. Interaction state is not touched.
func (s *HQService) DeleteVideo(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: video id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.deleted, id) {
		s.deleted = append(s.deleted, id)
	}
	s.catalog = FilterDeleted(s.catalog, s.deleted)
	if err := PutJSON(ctx, s.store, KeyDeletedIDs, s.deleted); err != nil {
		s.logger.Warn("persisting deleted ids failed", "error", err)
	}
	s.logger.Info("video soft-deleted", "id", id)
	return nil
}

// UndeleteVideo lifts a soft-delete. The entry reappears on the next refresh.
func (s *HQService) UndeleteVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = removeID(slices.Clone(s.deleted), id)
	if err := PutJSON(ctx, s.store, KeyDeletedIDs, s.deleted); err != nil {
		s.logger.Warn("persisting deleted ids failed", "error", err)
	}
	return nil
}

// DeletedIDs returns the soft-deleted ids.
func (s *HQService) DeletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

// Categories returns the custom category list.
func (s *HQService) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// AddCategory appends a category. Blank and duplicate names are rejected.
func (s *HQService) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("category name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.categories, name) {
		return fmt.Errorf("category already exists: %s", name)
	}
	s.categories = append(slices.Clone(s.categories), name)
	if err := PutJSON(ctx, s.store, KeyCategories, s.categories); err != nil {
		s.logger.Warn("persisting categories failed", "error", err)
	}
	return nil
}

// RemoveCategory deletes a category. Videos keep their category string.
func (s *HQService) RemoveCategory(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.categories, name) {
		return fmt.Errorf("category %s: %w", name, ErrNotFound)
	}
	s.categories = removeID(slices.Clone(s.categories), name)
	if err := PutJSON(ctx, s.store, KeyCategories, s.categories); err != nil {
		s.logger.Warn("persisting categories failed", "error", err)
	}
	return nil
}

// UploadMeta is the admin-supplied metadata for a new clip.
type UploadMeta struct {
	Title    string
	Category string
	Width    int
	Height   int
}

// Upload pushes a local media file to the upload target and prepends the
// resulting entry to the active catalog without re-fetching it.
func (s *HQService) Upload(ctx context.Context, file *MediaFile, meta UploadMeta) (VideoEntry, error) {
	category := strings.TrimSpace(meta.Category)
	if category == "" {
		if cats := s.Categories(); len(cats) > 0 {
			category = cats[0]
		}
	}
	caption := strings.TrimSpace(meta.Title)
	if caption == "" {
		caption = UntitledCaption
	}

	r, err := s.media.Open(file)
	if err != nil {
		return VideoEntry{}, fmt.Errorf("opening media: %w", err)
	}
	defer r.Close()

	res, err := s.uploads.Upload(ctx, UploadRequest{
		Filename: file.String(),
		Format:   file.Format(),
		Folder:   UploadFolder,
		Tags:     []string{CommonTag, category},
		Caption:  caption,
		Width:    meta.Width,
		Height:   meta.Height,
	}, r, file.Size())
	if err != nil {
		return VideoEntry{}, fmt.Errorf("uploading media: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = NewVideoTitle
	}
	created := res.CreatedAt
	entry := VideoEntry{
		ID:        res.PublicID,
		PublicID:  res.PublicID,
		URL:       res.SecureURL,
		Kind:      KindFromDimensions(res.Width, res.Height),
		Title:     title,
		Category:  category,
		CreatedAt: &created,
	}

	s.mu.Lock()
	s.catalog = append([]VideoEntry{entry}, s.catalog...)
	s.mu.Unlock()

	s.router.ShowToast("تم الرفع والتحليل")
	s.logger.Info("video uploaded", "id", entry.ID, "kind", entry.Kind)
	return entry, nil
}

// Analyze runs AI analysis over a local media file. It never fails: any
// problem yields PlaceholderInsight.
func (s *HQService) Analyze(ctx context.Context, file *MediaFile) VideoInsight {
	if s.analyzer == nil {
		return PlaceholderInsight()
	}

	r, err := s.media.Open(file)
	if err != nil {
		s.logger.Warn("analysis: opening media failed", "error", err)
		return PlaceholderInsight()
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, MaxAnalyzeBytes))
	if err != nil {
		s.logger.Warn("analysis: reading media failed", "error", err)
		return PlaceholderInsight()
	}

	insight, err := s.analyzer.Analyze(ctx, data, file.MIMEType())
	if err != nil || insight == nil {
		s.logger.Warn("analysis failed, using placeholder", "error", err)
		return PlaceholderInsight()
	}
	return *insight
}

// WarmOfflineCache downloads the first OfflineBatchSize catalog entries.
// Individual download failures are skipped. It returns how many are cached.
func (s *HQService) WarmOfflineCache(ctx context.Context) (int, error) {
	catalog := s.Catalog()
	if len(catalog) > OfflineBatchSize {
		catalog = catalog[:OfflineBatchSize]
	}

	s.router.ShowToast("جاري التحميل...")
	cached := 0
	for _, e := range catalog {
		if err := s.offline.Add(ctx, e.URL); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return cached, ctxErr
			}
			s.logger.Debug("offline cache skipped entry", "id", e.ID, "error", err)
			continue
		}
		cached++
	}

	if err := PutJSON(ctx, s.store, KeyOfflineReady, true); err != nil {
		s.logger.Warn("persisting offline flag failed", "error", err)
	}
	s.router.ShowToast("جاهز بدون إنترنت")
	s.logger.Info("offline cache warmed", "count", cached)
	return cached, nil
}

// ClearOfflineCache empties the offline cache and resets the ready flag.
func (s *HQService) ClearOfflineCache(ctx context.Context) error {
	if err := s.offline.Clear(); err != nil {
		return fmt.Errorf("clearing offline cache: %w", err)
	}
	if err := s.store.Delete(ctx, KeyOfflineReady); err != nil {
		s.logger.Warn("clearing offline flag failed", "error", err)
	}
	s.router.ShowToast("تم مسح الكاش")
	return nil
}

// OfflineReady reports whether the offline cache has been warmed.
func (s *HQService) OfflineReady(ctx context.Context) bool {
	var ready bool
	if err := GetJSON(ctx, s.store, KeyOfflineReady, &ready); err != nil {
		return false
	}
	return ready
}

// OfflineStatus summarizes the offline cache.
type OfflineStatus struct {
	Ready       bool       `json:"ready"`
	Count       int        `json:"count"`
	Bytes       int64      `json:"bytes"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// OfflineStatus reports what the offline cache holds and when the catalog
// was last refreshed from the network.
func (s *HQService) OfflineStatus(ctx context.Context) (OfflineStatus, error) {
	count, err := s.offline.Count()
	if err != nil {
		return OfflineStatus{}, fmt.Errorf("counting offline items: %w", err)
	}
	size, err := s.offline.Size()
	if err != nil {
		return OfflineStatus{}, fmt.Errorf("measuring offline cache: %w", err)
	}
	st := OfflineStatus{Ready: s.OfflineReady(ctx), Count: count, Bytes: size}

	s.mu.Lock()
	if !s.refreshedAt.IsZero() {
		t := s.refreshedAt
		st.RefreshedAt = &t
	}
	s.mu.Unlock()
	return st, nil
}

// OpenOffline returns the cached copy of catalog entry id.
// The caller must close the reader.
func (s *HQService) OpenOffline(id string) (VideoEntry, io.ReadCloser, error) {
	s.mu.Lock()
	entry, ok := FindEntry(s.catalog, id)
	s.mu.Unlock()
	if !ok {
		return VideoEntry{}, nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	cached, err := s.offline.Contains(entry.URL)
	if err != nil {
		return VideoEntry{}, nil, fmt.Errorf("checking offline cache: %w", err)
	}
	if !cached {
		return VideoEntry{}, nil, fmt.Errorf("video %s: %w", id, ErrNotCached)
	}

	r, err := s.offline.Open(entry.URL)
	if err != nil {
		return VideoEntry{}, nil, err
	}
	return entry, r, nil
}

// StoredKeys lists the keys the state store holds. Stores that cannot
// enumerate report the known state keys that are present.
func (s *HQService) StoredKeys(ctx context.Context) ([]string, error) {
	if lister, ok := s.store.(KeyLister); ok {
		keys, err := lister.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing state keys: %w", err)
		}
		return keys, nil
	}

	var keys []string
	for _, key := range AllStateKeys {
		if _, err := s.store.Get(ctx, key); err == nil {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// StateBundle is a portable snapshot of every local state key.
type StateBundle map[string]json.RawMessage

// ExportState collects every persisted state key into a bundle.
func (s *HQService) ExportState(ctx context.Context) (StateBundle, error) {
	present, err := s.StoredKeys(ctx)
	if err != nil {
		return nil, err
	}

	bundle := StateBundle{}
	for _, key := range present {
		if !slices.Contains(AllStateKeys, key) {
			s.logger.Debug("skipping foreign key on export", "key", key)
			continue
		}
		data, err := s.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if !json.Valid(data) {
			s.logger.Warn("skipping corrupt state key on export", "key", key)
			continue
		}
		bundle[key] = json.RawMessage(data)
	}
	return bundle, nil
}

// ImportState writes a bundle back into the store and reloads in-memory state.
// Unknown keys are rejected so a foreign file cannot write arbitrary keys.
func (s *HQService) ImportState(ctx context.Context, bundle StateBundle) error {
	for key := range bundle {
		if !slices.Contains(AllStateKeys, key) {
			return fmt.Errorf("unknown state key: %s", key)
		}
	}
	for _, key := range AllStateKeys {
		data, ok := bundle[key]
		if !ok {
			continue
		}
		if err := s.store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
	s.Open(ctx)
	return nil
}

package hq

import (
	"context"
	"sync"
)

// InteractionSink receives the user actions raised inside a playback overlay.
// Overlays never persist anything themselves.
type InteractionSink interface {
	Like(ctx context.Context, id string) error
	Dislike(ctx context.Context, id string) error
	Save(ctx context.Context, id string) error
	RecordProgress(ctx context.Context, id string, progress float64) error
}

// ShortsOverlay is a vertically swipeable list of short clips seeded at one entry.
// Scrolling past either end is ignored; the list does not wrap.
type ShortsOverlay struct {
	mu    sync.Mutex
	list  []VideoEntry
	index int
	sink  InteractionSink
}

// NewShortsOverlay opens the list at initial. If initial is not in list it is
// put at the head, so the overlay always opens on the requested clip.
func NewShortsOverlay(initial VideoEntry, list []VideoEntry, sink InteractionSink) *ShortsOverlay {
	for i, e := range list {
		if e.ID == initial.ID {
			return &ShortsOverlay{list: append([]VideoEntry{}, list...), index: i, sink: sink}
		}
	}
	entries := append([]VideoEntry{initial}, list...)
	return &ShortsOverlay{list: entries, index: 0, sink: sink}
}

// Current returns the visible clip.
func (o *ShortsOverlay) Current() VideoEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.list[o.index]
}

// Index returns the position of the visible clip.
func (o *ShortsOverlay) Index() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index
}

// Len returns the number of clips in the overlay.
func (o *ShortsOverlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}

// ScrollTo makes the clip at index current. Out-of-range indexes are ignored.
// It reports whether the current clip changed.
func (o *ShortsOverlay) ScrollTo(index int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.list) || index == o.index {
		return false
	}
	o.index = index
	return true
}

// Next advances one page.
func (o *ShortsOverlay) Next() bool { return o.ScrollTo(o.Index() + 1) }

// Previous goes back one page.
func (o *ShortsOverlay) Previous() bool { return o.ScrollTo(o.Index() - 1) }

// ReportProgress forwards progress for id, but only while id is the current
// clip. Reports for off-screen clips are dropped and return false.
func (o *ShortsOverlay) ReportProgress(ctx context.Context, id string, progress float64) (bool, error) {
	if o.Current().ID != id {
		return false, nil
	}
	return true, o.sink.RecordProgress(ctx, id, progress)
}

func (o *ShortsOverlay) Like(ctx context.Context) error { return o.sink.Like(ctx, o.Current().ID) }
func (o *ShortsOverlay) Dislike(ctx context.Context) error {
	return o.sink.Dislike(ctx, o.Current().ID)
}
func (o *ShortsOverlay) Save(ctx context.Context) error { return o.sink.Save(ctx, o.Current().ID) }

// LongOverlay plays one long-form clip and autoplays from a suggestion list.
type LongOverlay struct {
	mu      sync.Mutex
	current VideoEntry
	list    []VideoEntry
	sink    InteractionSink
}

// NewLongOverlay starts playing v with list as the pool of suggestions.
func NewLongOverlay(v VideoEntry, list []VideoEntry, sink InteractionSink) *LongOverlay {
	return &LongOverlay{current: v, list: append([]VideoEntry{}, list...), sink: sink}
}

// Current returns the playing clip.
func (o *LongOverlay) Current() VideoEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Suggestions returns the pool without the playing clip.
func (o *LongOverlay) Suggestions() []VideoEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suggestionsLocked()
}

func (o *LongOverlay) suggestionsLocked() []VideoEntry {
	return filter(o.list, func(e VideoEntry) bool { return e.ID != o.current.ID })
}

// Switch starts playing v. The suggestion pool is kept.
func (o *LongOverlay) Switch(v VideoEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = v
}

// Ended handles natural end of media: it switches to the first suggestion and
// returns it, or reports looped=true and keeps the current clip when there is none.
func (o *LongOverlay) Ended() (next VideoEntry, looped bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.suggestionsLocked()
	if len(s) == 0 {
		return o.current, true
	}
	o.current = s[0]
	return o.current, false
}

// ReportProgress forwards progress for the playing clip.
func (o *LongOverlay) ReportProgress(ctx context.Context, progress float64) error {
	return o.sink.RecordProgress(ctx, o.Current().ID, progress)
}

func (o *LongOverlay) Like(ctx context.Context) error    { return o.sink.Like(ctx, o.Current().ID) }
func (o *LongOverlay) Dislike(ctx context.Context) error { return o.sink.Dislike(ctx, o.Current().ID) }
func (o *LongOverlay) Save(ctx context.Context) error    { return o.sink.Save(ctx, o.Current().ID) }

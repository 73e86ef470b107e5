package hq

import (
	"slices"
	"sort"
	"strings"
)

// Partial-watch window for the "continue watching" feed (exclusive bounds).
const (
	UnwatchedMinProgress = 0.05
	UnwatchedMaxProgress = 0.9
)

// MaxSearchResults caps Search output.
const MaxSearchResults = 5

// DerivedFeeds holds every view-specific subset of the catalog. It is never
// stored; recompute it from the catalog and interaction state when either changes.
type DerivedFeeds struct {
	HomeShorts []VideoEntry `json:"homeShorts"`
	HomeLongs  []VideoEntry `json:"homeLongs"`
	Trending   []VideoEntry `json:"trending"`
	Liked      []VideoEntry `json:"liked"`
	Saved      []VideoEntry `json:"saved"`
	Hidden     []VideoEntry `json:"hidden"`
	Unwatched  []VideoEntry `json:"unwatched"`
}

// DeriveFeeds computes all feeds. Entries whose id is in deleted are dropped
// before anything else. The function does no I/O and does not modify its inputs.
func DeriveFeeds(catalog []VideoEntry, st InteractionState, deleted []string) DerivedFeeds {
	active := FilterDeleted(catalog, deleted)

	home := filter(active, func(e VideoEntry) bool {
		return !st.IsLiked(e.ID) && !st.IsDisliked(e.ID)
	})

	return DerivedFeeds{
		HomeShorts: FilterKind(home, KindShort),
		HomeLongs:  FilterKind(home, KindLong),
		Trending:   Trending(active, st),
		Liked:      filter(active, func(e VideoEntry) bool { return st.IsLiked(e.ID) }),
		Saved:      filter(active, func(e VideoEntry) bool { return st.IsSaved(e.ID) }),
		Hidden:     filter(active, func(e VideoEntry) bool { return st.IsDisliked(e.ID) }),
		Unwatched:  Unwatched(active, st),
	}
}

// FilterDeleted drops entries soft-deleted by an administrator.
func FilterDeleted(catalog []VideoEntry, deleted []string) []VideoEntry {
	if len(deleted) == 0 {
		return filter(catalog, func(VideoEntry) bool { return true })
	}
	return filter(catalog, func(e VideoEntry) bool { return !slices.Contains(deleted, e.ID) })
}

// Unwatched maps partially watched history records back to catalog entries,
// in history order. Ids no longer in the catalog are skipped.
func Unwatched(catalog []VideoEntry, st InteractionState) []VideoEntry {
	out := []VideoEntry{}
	for _, r := range st.WatchHistory {
		if r.Progress <= UnwatchedMinProgress || r.Progress >= UnwatchedMaxProgress {
			continue
		}
		if e, ok := FindEntry(catalog, r.ID); ok {
			out = append(out, e)
		}
	}
	return out
}

// Trending returns the non-hidden catalog ordered by pseudo view count,
// highest first. Equal counts keep catalog order.
func Trending(catalog []VideoEntry, st InteractionState) []VideoEntry {
	out := filter(catalog, func(e VideoEntry) bool { return !st.IsDisliked(e.ID) })
	sort.SliceStable(out, func(i, j int) bool {
		return Stats(out[i].URL).Views > Stats(out[j].URL).Views
	})
	return out
}

// Search does a case-insensitive substring match on titles. Blank queries
// match nothing. Results follow catalog order and are capped at MaxSearchResults.
func Search(catalog []VideoEntry, query string) []VideoEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []VideoEntry{}
	}
	out := []VideoEntry{}
	for _, e := range catalog {
		if strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, e)
			if len(out) == MaxSearchResults {
				break
			}
		}
	}
	return out
}

// ProgressMap indexes watch progress by video id.
func ProgressMap(st InteractionState) map[string]float64 {
	m := make(map[string]float64, len(st.WatchHistory))
	for _, r := range st.WatchHistory {
		m[r.ID] = r.Progress
	}
	return m
}

// ForView returns the feed backing a navigable view. Views without a feed
// (privacy, admin) return nil.
func (f DerivedFeeds) ForView(v View) []VideoEntry {
	switch v {
	case ViewHome:
		return append(append([]VideoEntry{}, f.HomeShorts...), f.HomeLongs...)
	case ViewTrend:
		return f.Trending
	case ViewLiked:
		return f.Liked
	case ViewSaved:
		return f.Saved
	case ViewUnwatched:
		return f.Unwatched
	case ViewHidden:
		return f.Hidden
	default:
		return nil
	}
}

func filter(entries []VideoEntry, keep func(VideoEntry) bool) []VideoEntry {
	out := make([]VideoEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

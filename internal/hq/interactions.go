package hq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// WatchRecord is the furthest playback position reached for one video.
type WatchRecord struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
}

// InteractionState is the user's durable like/dislike/save/progress data.
//
// All mutating methods return a new state and leave the receiver untouched,
// so callers replace the whole state on every change. LikedIDs and
// DislikedIDs are kept disjoint.
type InteractionState struct {
	LikedIDs     []string      `json:"likedIds"`
	DislikedIDs  []string      `json:"dislikedIds"`
	SavedIDs     []string      `json:"savedIds"`
	WatchHistory []WatchRecord `json:"watchHistory"`
}

// NewInteractionState returns an empty state with non-nil collections.
func NewInteractionState() InteractionState {
	return InteractionState{
		LikedIDs:     []string{},
		DislikedIDs:  []string{},
		SavedIDs:     []string{},
		WatchHistory: []WatchRecord{},
	}
}

// Clone returns a deep copy of the state.
func (s InteractionState) Clone() InteractionState {
	out := NewInteractionState()
	out.LikedIDs = append(out.LikedIDs, s.LikedIDs...)
	out.DislikedIDs = append(out.DislikedIDs, s.DislikedIDs...)
	out.SavedIDs = append(out.SavedIDs, s.SavedIDs...)
	out.WatchHistory = append(out.WatchHistory, s.WatchHistory...)
	return out
}

// Like marks id as liked and clears any dislike of it.
func (s InteractionState) Like(id string) InteractionState {
	out := s.Clone()
	out.LikedIDs = addID(out.LikedIDs, id)
	out.DislikedIDs = removeID(out.DislikedIDs, id)
	return out
}

// Unlike removes id from the liked set.
func (s InteractionState) Unlike(id string) InteractionState {
	out := s.Clone()
	out.LikedIDs = removeID(out.LikedIDs, id)
	return out
}

// Dislike hides id and clears any like of it.
func (s InteractionState) Dislike(id string) InteractionState {
	out := s.Clone()
	out.DislikedIDs = addID(out.DislikedIDs, id)
	out.LikedIDs = removeID(out.LikedIDs, id)
	return out
}

// Save bookmarks id. Saving is independent of like/dislike.
func (s InteractionState) Save(id string) InteractionState {
	out := s.Clone()
	out.SavedIDs = addID(out.SavedIDs, id)
	return out
}

// Unsave removes id from the saved set.
func (s InteractionState) Unsave(id string) InteractionState {
	out := s.Clone()
	out.SavedIDs = removeID(out.SavedIDs, id)
	return out
}

// Restore un-hides id. It only touches DislikedIDs and is idempotent.
func (s InteractionState) Restore(id string) InteractionState {
	out := s.Clone()
	out.DislikedIDs = removeID(out.DislikedIDs, id)
	return out
}

// RecordProgress stores max(existing, progress) for id, clamping progress to [0,1].
func (s InteractionState) RecordProgress(id string, progress float64) InteractionState {
	p := ClampProgress(progress)
	out := s.Clone()
	for i := range out.WatchHistory {
		if out.WatchHistory[i].ID == id {
			if p > out.WatchHistory[i].Progress {
				out.WatchHistory[i].Progress = p
			}
			return out
		}
	}
	out.WatchHistory = append(out.WatchHistory, WatchRecord{ID: id, Progress: p})
	return out
}

// ProgressOf returns the recorded progress for id, or 0.
func (s InteractionState) ProgressOf(id string) float64 {
	for _, r := range s.WatchHistory {
		if r.ID == id {
			return r.Progress
		}
	}
	return 0
}

func (s InteractionState) IsLiked(id string) bool    { return slices.Contains(s.LikedIDs, id) }
func (s InteractionState) IsDisliked(id string) bool { return slices.Contains(s.DislikedIDs, id) }
func (s InteractionState) IsSaved(id string) bool    { return slices.Contains(s.SavedIDs, id) }

// ClampProgress limits p to [0,1]. NaN is treated as 0.
func ClampProgress(p float64) float64 {
	switch {
	case p != p, p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// normalize reconciles a state that may have been written by another client:
// collections are non-nil and free of duplicates, an id both liked and
// disliked stays liked only, and every progress is clamped to [0,1] with
// duplicate records merged to their maximum.
func (s InteractionState) normalize() InteractionState {
	out := NewInteractionState()
	for _, id := range s.LikedIDs {
		out.LikedIDs = addID(out.LikedIDs, id)
	}
	for _, id := range s.DislikedIDs {
		if !slices.Contains(out.LikedIDs, id) {
			out.DislikedIDs = addID(out.DislikedIDs, id)
		}
	}
	for _, id := range s.SavedIDs {
		out.SavedIDs = addID(out.SavedIDs, id)
	}
	for _, r := range s.WatchHistory {
		p := ClampProgress(r.Progress)
		i := slices.IndexFunc(out.WatchHistory, func(w WatchRecord) bool { return w.ID == r.ID })
		if i < 0 {
			out.WatchHistory = append(out.WatchHistory, WatchRecord{ID: r.ID, Progress: p})
			continue
		}
		out.WatchHistory[i].Progress = max(out.WatchHistory[i].Progress, p)
	}
	return out
}

func addID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(x string) bool { return x == id })
}

// InteractionStore persists InteractionState under a single state key.
// Writes always replace the whole blob.
type InteractionStore struct {
	store  StateStore
	logger Logger
}

// NewInteractionStore creates an InteractionStore backed by store.
func NewInteractionStore(store StateStore, logger Logger) *InteractionStore {
	return &InteractionStore{store: store, logger: logger}
}

// Load reads the persisted state. Missing or corrupt data yields the empty state.
func (s *InteractionStore) Load(ctx context.Context) InteractionState {
	data, err := s.store.Get(ctx, KeyInteractions)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("loading interactions failed", "error", err)
		}
		return NewInteractionState()
	}

	var st InteractionState
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("interactions blob is corrupt, starting empty", "error", err)
		return NewInteractionState()
	}
	return st.normalize()
}

// Save persists st. Failures only cost personalization, so they are logged
// and reported but callers are free to ignore the error.
func (s *InteractionStore) Save(ctx context.Context, st InteractionState) error {
	data, err := json.Marshal(st.normalize())
	if err != nil {
		return fmt.Errorf("encoding interactions: %w", err)
	}
	if err := s.store.Put(ctx, KeyInteractions, data); err != nil {
		s.logger.Warn("persisting interactions failed", "error", err)
		return fmt.Errorf("persisting interactions: %w", err)
	}
	return nil
}

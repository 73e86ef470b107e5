package hq

import "time"

// Kind classifies a clip and decides which overlay and feed section it lands in.
type Kind string

const (
	KindShort Kind = "short"
	KindLong  Kind = "long"
)

// Placeholder metadata used when the remote record carries no caption.
const (
	DefaultTitle    = "فيديو مرعب"
	DefaultCategory = "غموض"
)

// VideoEntry identifies one playable clip. Entries are rebuilt on every
// catalog fetch and never mutated afterwards.
type VideoEntry struct {
	ID        string     `json:"id"`
	PublicID  string     `json:"public_id"`
	URL       string     `json:"video_url"`
	Kind      Kind       `json:"type"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// KindFromDimensions returns KindShort for portrait media and KindLong otherwise.
func KindFromDimensions(width, height int) Kind {
	if height > width {
		return KindShort
	}
	return KindLong
}

// FindEntry returns the entry with the given id and whether it was found.
func FindEntry(entries []VideoEntry, id string) (VideoEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return VideoEntry{}, false
}

// FilterKind returns the entries of the given kind, preserving order.
func FilterKind(entries []VideoEntry, kind Kind) []VideoEntry {
	out := make([]VideoEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

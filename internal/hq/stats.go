package hq

import (
	"strconv"
	"unicode/utf16"
)

// VideoStats are display-only counters derived from the media URL.
type VideoStats struct {
	Views int64 `json:"views"`
	Likes int64 `json:"likes"`
}

// Stats returns stable pseudo view/like counts for url. The same url always
// yields the same numbers, across runs and processes.
func Stats(url string) VideoStats {
	if url == "" {
		return VideoStats{}
	}
	h := urlHash(url)
	return VideoStats{
		Views: (abs64(h%85)+10)*1_000_000 + abs64(h%900)*1_000,
		Likes: (abs64(h%8)+1)*1_000_000 + abs64(h%800)*1_000,
	}
}

// urlHash is the classic h = c + (h<<5) - h string hash over UTF-16 code
// units, where the shift operates on the 32-bit truncation of h.
func urlHash(s string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(s)) {
		shifted := int32(h) << 5
		h = int64(c) + int64(shifted) - h
	}
	return h
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FormatBigNumber renders n with a K or M suffix.
func FormatBigNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

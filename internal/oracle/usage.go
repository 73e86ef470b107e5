package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hadiqa-go/internal/hq"
)

// DefaultDailyLimit is the number of voice exchanges allowed per calendar day.
const DefaultDailyLimit = 10

const dayLayout = "2006-01-02"

// ErrDailyLimit is returned by Session.Start once the day's quota is used up.
var ErrDailyLimit = errors.New("daily voice limit reached")

type usageRecord struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// UsageCounter counts voice exchanges per local calendar day. A stored record
// from an earlier day reads as zero.
type UsageCounter struct {
	mu    sync.Mutex
	store hq.StateStore
	clock hq.Clock
	limit int
}

func NewUsageCounter(store hq.StateStore, clock hq.Clock, limit int) *UsageCounter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &UsageCounter{store: store, clock: clock, limit: limit}
}

// Limit returns the daily quota.
func (u *UsageCounter) Limit() int { return u.limit }

// Today returns the number of exchanges recorded today.
func (u *UsageCounter) Today(ctx context.Context) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.todayLocked(ctx)
}

func (u *UsageCounter) todayLocked(ctx context.Context) int {
	var rec usageRecord
	if err := hq.GetJSON(ctx, u.store, hq.KeyVoiceUsage, &rec); err != nil {
		return 0
	}
	if rec.Date != u.clock.Now().Format(dayLayout) {
		return 0
	}
	return rec.Count
}

// Exhausted reports whether today's quota is used up.
func (u *UsageCounter) Exhausted(ctx context.Context) bool {
	return u.Today(ctx) >= u.limit
}

// Increment records one exchange for today and returns the new count.
func (u *UsageCounter) Increment(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	rec := usageRecord{Count: u.todayLocked(ctx) + 1, Date: u.clock.Now().Format(dayLayout)}
	if err := hq.PutJSON(ctx, u.store, hq.KeyVoiceUsage, rec); err != nil {
		return rec.Count, fmt.Errorf("recording voice usage: %w", err)
	}
	return rec.Count, nil
}

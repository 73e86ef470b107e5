package hq

import (
	"sync"
	"time"
)

// DefaultToastDuration is how long a toast stays visible.
const DefaultToastDuration = 3 * time.Second

// Toaster holds at most one transient message and clears it after a delay.
type Toaster struct {
	mu       sync.Mutex
	clock    Clock
	duration time.Duration
	msg      string
	gen      uint64
	timer    Timer
}

// NewToaster creates a Toaster that dismisses messages after d on clock.
func NewToaster(clock Clock, d time.Duration) *Toaster {
	return &Toaster{clock: clock, duration: d}
}

// Show replaces the current message and restarts the dismiss timer.
func (t *Toaster) Show(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.msg = msg
	t.timer = t.clock.AfterFunc(t.duration, func() { t.dismiss(gen) })
}

// Current returns the visible message, or "".
func (t *Toaster) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.msg
}

// dismiss clears the message only if no newer toast replaced it.
func (t *Toaster) dismiss(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.msg = ""
	t.timer = nil
}

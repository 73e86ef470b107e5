package oracle

import (
	"fmt"
	"sync"
	"time"
)

// Speaker plays mono float samples at OutputSampleRate on its own timeline.
type Speaker interface {
	// Now returns the current position of the speaker's timeline.
	Now() time.Duration

	// Play schedules samples to start at the given timeline position.
	Play(at time.Duration, samples []float32)

	// StopAll stops and discards everything scheduled.
	StopAll()
}

// Scheduler queues inbound audio chunks back to back. Each chunk starts at
// max(now, end of the previous chunk), so chunks never overlap.
type Scheduler struct {
	mu      sync.Mutex
	speaker Speaker
	next    time.Duration
}

func NewScheduler(speaker Speaker) *Scheduler {
	return &Scheduler{speaker: speaker}
}

// Enqueue decodes a PCM chunk and schedules it. It returns the chosen start.
func (s *Scheduler) Enqueue(pcm []byte) (time.Duration, error) {
	samples, err := DecodePCM16(pcm)
	if err != nil {
		return 0, fmt.Errorf("decoding audio chunk: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(s.next, s.speaker.Now())
	s.speaker.Play(start, samples)
	s.next = start + SamplesDuration(len(samples), OutputSampleRate)
	return start, nil
}

// Reset stops playback and clears the queue.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaker.StopAll()
	s.next = 0
}

package oracle

import (
	"io"
	"sync"
	"time"
)

// PCMWriterSpeaker renders scheduled audio into a continuous 16-bit PCM
// stream. Gaps between clips are filled with silence.
type PCMWriterSpeaker struct {
	mu     sync.Mutex
	w      io.Writer
	cursor time.Duration
	err    error
}

func NewPCMWriterSpeaker(w io.Writer) *PCMWriterSpeaker {
	return &PCMWriterSpeaker{w: w}
}

func (s *PCMWriterSpeaker) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *PCMWriterSpeaker) Play(at time.Duration, samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if gap := at - s.cursor; gap > 0 {
		silence := make([]float32, int(gap*OutputSampleRate/time.Second))
		if _, s.err = s.w.Write(EncodePCM16(silence)); s.err != nil {
			return
		}
		s.cursor = at
	}
	if _, s.err = s.w.Write(EncodePCM16(samples)); s.err != nil {
		return
	}
	s.cursor += SamplesDuration(len(samples), OutputSampleRate)
}

// StopAll is a no-op: written audio cannot be recalled.
func (s *PCMWriterSpeaker) StopAll() {}

// Err returns the first write error.
func (s *PCMWriterSpeaker) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

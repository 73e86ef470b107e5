package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"hadiqa-go/internal/hq"
)

// ErrSessionActive is returned by Start while a session is already running.
var ErrSessionActive = errors.New("voice session already active")

// Microphone yields raw 16 kHz mono 16-bit PCM.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileMicrophone replays a raw PCM file as microphone input.
type FileMicrophone struct {
	Path string
}

func (m FileMicrophone) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(m.Path)
}

// Session is a live voice conversation with the oracle. Start and Stop are
// explicit; a transport error or close ends the session the same way Stop does.
// Once the microphone runs dry the session ends after the next completed turn.
type Session struct {
	dialer    Dialer
	mic       Microphone
	scheduler *Scheduler
	usage     *UsageCounter
	history   *History
	logger    hq.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	active  bool
	gen     uint64
	conn    Conn
	stream  io.ReadCloser
	cancel  context.CancelFunc
	done    chan struct{}
	ended   bool
	input   strings.Builder
	output  strings.Builder
	lastErr error
}

func NewSession(dialer Dialer, mic Microphone, speaker Speaker, usage *UsageCounter, history *History, logger hq.Logger) *Session {
	return &Session{
		dialer:    dialer,
		mic:       mic,
		scheduler: NewScheduler(speaker),
		usage:     usage,
		history:   history,
		logger:    logger,
	}
}

// Start opens the microphone and the transport and begins streaming.
// Any failure leaves the session inactive.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrSessionActive
	}
	if s.usage.Exhausted(ctx) {
		return ErrDailyLimit
	}

	stream, err := s.mic.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening microphone: %w", err)
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		stream.Close()
		return fmt.Errorf("connecting to oracle: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.gen++
	s.active = true
	s.conn = conn
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastErr = nil
	s.ended = false
	s.input.Reset()
	s.output.Reset()

	gen := s.gen
	s.wg.Add(2)
	go s.pump(runCtx, gen, conn, stream)
	go s.receive(runCtx, gen, conn)

	s.logger.Info("voice session started")
	return nil
}

// Stop ends the session, stops playback and waits for the workers to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.active {
		s.resetLocked()
		s.logger.Info("voice session stopped")
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Done is closed when the current session ends.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Err returns the transport error that ended the last session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) resetLocked() {
	s.active = false
	s.cancel()
	s.conn.Close()
	s.stream.Close()
	s.scheduler.Reset()
	s.input.Reset()
	s.output.Reset()
	close(s.done)
}

func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.active {
		return
	}
	s.logger.Warn("voice session ended", "error", err)
	s.lastErr = err
	s.resetLocked()
}

func (s *Session) pump(ctx context.Context, gen uint64, conn Conn, stream io.Reader) {
	defer s.wg.Done()
	buf := make([]byte, 2*FrameSamples)
	for {
		n, err := io.ReadFull(stream, buf)
		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			if sendErr := conn.SendAudio(buf[:n]); sendErr != nil {
				s.fail(gen, sendErr)
				return
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Debug("microphone input ended")
			s.mu.Lock()
			if gen == s.gen {
				s.ended = true
			}
			s.mu.Unlock()
			if endErr := conn.EndAudio(); endErr != nil {
				s.fail(gen, endErr)
			}
			return
		}
		if err != nil {
			s.fail(gen, err)
			return
		}
	}
}

func (s *Session) receive(ctx context.Context, gen uint64, conn Conn) {
	defer s.wg.Done()
	for {
		ev, err := conn.Receive()
		if err != nil {
			s.fail(gen, err)
			return
		}
		s.handle(ctx, gen, ev)
	}
}

func (s *Session) handle(ctx context.Context, gen uint64, ev Event) {
	if ev.Interrupted {
		s.scheduler.Reset()
	}

	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.input.WriteString(ev.InputText)
	s.output.WriteString(ev.OutputText)

	var turn []ChatMessage
	if ev.TurnComplete && s.input.Len() > 0 {
		reply := s.output.String()
		if reply == "" {
			reply = "..."
		}
		turn = []ChatMessage{{Role: RoleUser, Text: s.input.String()}, {Role: RoleModel, Text: reply}}
		s.input.Reset()
		s.output.Reset()
	}
	finish := ev.TurnComplete && s.ended
	s.mu.Unlock()

	if turn != nil {
		s.history.Append(ctx, turn...)
		if _, err := s.usage.Increment(ctx); err != nil {
			s.logger.Warn("recording voice usage failed", "error", err)
		}
	}

	if len(ev.Audio) > 0 {
		if _, err := s.scheduler.Enqueue(ev.Audio); err != nil {
			s.logger.Warn("dropping audio chunk", "error", err)
		}
	}

	if finish {
		s.mu.Lock()
		if gen == s.gen && s.active {
			s.logger.Info("voice session finished")
			s.resetLocked()
		}
		s.mu.Unlock()
	}
}

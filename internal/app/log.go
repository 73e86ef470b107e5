package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"hadiqa-go/internal/hq"
)

const logFileName = "hadiqa.log"

// runHandler writes one tab-separated line per record:
//
//	<timestamp>\t<level>\t<runID>\t<operation>\t<message>\t<key=value ...>
//
// Each line is built in memory and written with a single call, so records
// from concurrent request handlers never interleave.
type runHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	runID     string
	operation string
	attrs     []slog.Attr
}

func newRunHandler(w io.Writer, runID, operation string) *runHandler {
	return &runHandler{mu: &sync.Mutex{}, w: w, runID: runID, operation: operation}
}

func (h *runHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *runHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%s",
		r.Time.UTC().Format("2006-01-02T15:04:05Z"),
		r.Level.String(),
		h.runID,
		h.operation,
		r.Message,
	)
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{
		mu:        h.mu,
		w:         h.w,
		runID:     h.runID,
		operation: h.operation,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *runHandler) WithGroup(string) slog.Handler { return h }

// newLogger appends to logDir/hadiqa.log and mirrors to stderr. The caller
// closes the returned file.
func newLogger(logDir, runID, operation string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return slog.New(newRunHandler(io.MultiWriter(f, os.Stderr), runID, operation)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the hq.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

var _ hq.Logger = (*slogAdapter)(nil)

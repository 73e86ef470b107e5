package oracle

import (
	"context"
	"errors"
	"sync"

	"hadiqa-go/internal/hq"
)

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one line of the oracle transcript.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// History persists the oracle transcript as a single JSON array.
type History struct {
	mu     sync.Mutex
	store  hq.StateStore
	logger hq.Logger
}

func NewHistory(store hq.StateStore, logger hq.Logger) *History {
	return &History{store: store, logger: logger}
}

// Messages returns the stored transcript, or an empty one.
func (h *History) Messages(ctx context.Context) []ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(ctx)
}

func (h *History) loadLocked(ctx context.Context) []ChatMessage {
	var msgs []ChatMessage
	if err := hq.GetJSON(ctx, h.store, hq.KeyChatHistory, &msgs); err != nil {
		if !errors.Is(err, hq.ErrNotFound) {
			h.logger.Warn("loading chat history failed", "error", err)
		}
		return []ChatMessage{}
	}
	if msgs == nil {
		return []ChatMessage{}
	}
	return msgs
}

// Append adds msgs to the transcript. Write failures are logged and dropped.
func (h *History) Append(ctx context.Context, msgs ...ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := append(h.loadLocked(ctx), msgs...)
	if err := hq.PutJSON(ctx, h.store, hq.KeyChatHistory, all); err != nil {
		h.logger.Warn("persisting chat history failed", "error", err)
	}
}

// Clear drops the transcript.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Delete(ctx, hq.KeyChatHistory)
}

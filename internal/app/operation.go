package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation tracks a single CLI invocation. Its ID tags every log line the
// invocation writes; Status flips to "error" once any tracked step fails.
type Operation struct {
	ID        string
	Name      string
	Status    string // "success" or "error"
	StartedAt time.Time
}

// NewOperation creates a new operation with a fresh run ID.
func NewOperation(name string, startedAt time.Time) *Operation {
	return &Operation{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    "success",
		StartedAt: startedAt,
	}
}

// Record marks the operation failed when err is non-nil. A failure is sticky.
func (op *Operation) Record(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Failed reports whether any recorded step failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}

// Elapsed returns how long the operation has been running at now.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}

package domain

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
)

// BatchState is the orchestrator state of a batch run.
type BatchState string

const (
	BatchStateIdle      BatchState = "idle"
	BatchStateStarting  BatchState = "starting"
	BatchStateRunning   BatchState = "running"
	BatchStateFinished  BatchState = "finished"
	BatchStateCancelled BatchState = "cancelled"
	BatchStateFatal     BatchState = "fatal"
)

// Canceller is the read side of a cancellation signal.
type Canceller interface {
	IsSet() bool
}

// CancelSignal is a one-way flag. Once set it stays set.
type CancelSignal struct {
	set atomic.Bool
}

// NewCancelSignal returns an unset signal.
func NewCancelSignal() *CancelSignal {
	return &CancelSignal{}
}

// Set raises the flag and reports whether this call changed it.
func (s *CancelSignal) Set() bool {
	return s.set.CompareAndSwap(false, true)
}

// IsSet reports whether cancellation was requested.
func (s *CancelSignal) IsSet() bool {
	return s.set.Load()
}

// MessageRef identifies an editable chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// ManifestSource streams the uploaded manifest into w.
type ManifestSource interface {
	Fetch(ctx context.Context, w io.Writer) error
}

// BatchRequest asks the orchestrator to process one uploaded manifest.
type BatchRequest struct {
	// Destination is the chat receiving statuses and videos. It is also the run key.
	Destination int64
	// ReplyTo is the chat the manifest was uploaded from.
	ReplyTo  int64
	FileName string
	Source   ManifestSource
}

// BatchRun is the mutable state of one running batch. Only the orchestrator
// that owns it writes to it.
type BatchRun struct {
	ID        uuid.UUID
	RunID     int64
	FileName  string
	Total     int
	Completed int
	Status    MessageRef
	Cancel    *CancelSignal
	State     BatchState
}

// MarkAttempted records one more attempted entry, never exceeding Total.
func (r *BatchRun) MarkAttempted() {
	if r.Completed < r.Total {
		r.Completed++
	}
}

// BatchReport summarizes a batch at its terminal state.
type BatchReport struct {
	RunID     uuid.UUID
	State     BatchState
	Total     int
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Err       error
}

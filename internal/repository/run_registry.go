package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
)

// RunRegistry is the in-memory RunRepo. At most one signal exists per runID.
type RunRegistry struct {
	mu   sync.Mutex
	runs map[int64]*domain.CancelSignal
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		runs: make(map[int64]*domain.CancelSignal),
	}
}

// Register creates a fresh signal for runID. It fails with ErrBatchActive when
// a batch is already registered for it; the existing signal is left alone.
func (r *RunRegistry) Register(ctx context.Context, runID int64) (*domain.CancelSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runID]; exists {
		return nil, errpkg.ErrBatchActive
	}

	signal := domain.NewCancelSignal()
	r.runs[runID] = signal

	slog.Debug("run registered", "run_id", runID)
	return signal, nil
}

// Deregister removes the signal for runID if it is still the given one.
func (r *RunRegistry) Deregister(runID int64, signal *domain.CancelSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.runs[runID]; exists && current == signal {
		delete(r.runs, runID)
		slog.Debug("run deregistered", "run_id", runID)
	}
}

// RequestCancel sets the signal of the active batch for runID. It returns
// ErrNothingToCancel when no batch is active and ErrAlreadyCancelling when the
// signal was already set.
func (r *RunRegistry) RequestCancel(ctx context.Context, runID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	signal, exists := r.runs[runID]
	r.mu.Unlock()

	if !exists {
		return errpkg.ErrNothingToCancel
	}
	if !signal.Set() {
		return errpkg.ErrAlreadyCancelling
	}

	slog.Info("cancellation requested", "run_id", runID)
	return nil
}

// Active reports whether a batch is registered for runID.
func (r *RunRegistry) Active(runID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.runs[runID]
	return exists
}

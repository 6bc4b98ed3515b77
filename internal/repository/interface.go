package repository

import (
	"context"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
)

// RunRepo tracks the cancellation signal of every active batch, keyed by
// destination.
type RunRepo interface {
	Register(ctx context.Context, runID int64) (*domain.CancelSignal, error)
	Deregister(runID int64, signal *domain.CancelSignal)
	RequestCancel(ctx context.Context, runID int64) error
	Active(runID int64) bool
}

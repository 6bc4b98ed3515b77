// Package bot dispatches chat updates to the batch service and the
// cancellation registry.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
	"github.com/veranemoloko/hls-relay-bot/internal/metrics"
)

const textMimeType = "text/plain"

// Sender posts plain chat messages.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (domain.MessageRef, error)
}

// DocumentFetcher turns an uploaded document into a manifest source.
type DocumentFetcher interface {
	Document(fileID string) domain.ManifestSource
}

// BatchRunner runs one batch to completion.
type BatchRunner interface {
	Run(ctx context.Context, req domain.BatchRequest) (domain.BatchReport, error)
}

// RunController reports and cancels the active batch.
type RunController interface {
	Active(runID int64) bool
	RequestCancel(ctx context.Context, runID int64) error
}

// Handler routes updates. Every batch goes to the same destination chat.
type Handler struct {
	sender      Sender
	documents   DocumentFetcher
	batches     BatchRunner
	runs        RunController
	destination int64
	logger      *slog.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewHandler creates a Handler. Batches started by it run under baseCtx, so
// cancelling baseCtx stops them at the next entry.
func NewHandler(
	baseCtx context.Context,
	sender Sender,
	documents DocumentFetcher,
	batches BatchRunner,
	runs RunController,
	destination int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sender:      sender,
		documents:   documents,
		batches:     batches,
		runs:        runs,
		destination: destination,
		logger:      logger,
		baseCtx:     baseCtx,
	}
}

// HandleUpdate dispatches one update. It never blocks on a batch.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, msg)
	case msg.Document != nil:
		h.handleDocument(ctx, msg)
	}
}

// Wait blocks until every batch started by the handler has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		h.reply(ctx, chatID, helpText())
	case "cancel":
		h.reply(ctx, chatID, h.cancel(ctx))
	default:
		h.reply(ctx, chatID, unknownCommandText)
	}
}

func (h *Handler) cancel(ctx context.Context) string {
	err := h.runs.RequestCancel(ctx, h.destination)
	switch {
	case err == nil:
		metrics.CancelRequests.WithLabelValues("accepted").Inc()
		return cancelAcceptedText
	case errors.Is(err, errpkg.ErrAlreadyCancelling):
		metrics.CancelRequests.WithLabelValues("already_cancelling").Inc()
		return alreadyCancellingText
	case errors.Is(err, errpkg.ErrNothingToCancel):
		metrics.CancelRequests.WithLabelValues("nothing_to_cancel").Inc()
		return nothingToCancelText
	default:
		h.logger.Error("cancel request failed", "error", err)
		return nothingToCancelText
	}
}

func (h *Handler) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	chatID := msg.Chat.ID

	if !isTextDocument(doc) {
		h.logger.Info("rejected document", "chat_id", chatID, "file", doc.FileName, "mime_type", doc.MimeType)
		h.reply(ctx, chatID, notTextFileText)
		return
	}

	if h.runs.Active(h.destination) {
		metrics.BatchesRejected.Inc()
		h.logger.Info("manifest rejected, batch already running", "chat_id", chatID, "file", doc.FileName)
		h.reply(ctx, chatID, busyText(doc.FileName))
		return
	}

	h.logger.Info("manifest received", "chat_id", chatID, "file", doc.FileName, "size", doc.FileSize)
	h.reply(ctx, chatID, receivedText(doc.FileName))

	req := domain.BatchRequest{
		Destination: h.destination,
		ReplyTo:     chatID,
		FileName:    doc.FileName,
		Source:      h.documents.Document(doc.FileID),
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.batches.Run(h.baseCtx, req); err != nil {
			h.logger.Warn("batch did not complete", "file", req.FileName, "error", err)
		}
	}()
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Warn("failed to reply", "chat_id", chatID, "error", err)
	}
}

func isTextDocument(doc *tgbotapi.Document) bool {
	if strings.HasPrefix(doc.MimeType, textMimeType) {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.FileName), ".txt")
}

package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler consumes one chat update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// RunChecker reports whether a batch is running for a destination.
type RunChecker interface {
	Active(runID int64) bool
}

// WebhookHandler receives updates pushed by Telegram and exposes batch status.
type WebhookHandler struct {
	updates     UpdateHandler
	runs        RunChecker
	token       string
	destination int64
	logger      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. Only requests whose path carries
// token are accepted as updates.
func NewWebhookHandler(updates UpdateHandler, runs RunChecker, token string, destination int64, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		updates:     updates,
		runs:        runs,
		token:       token,
		destination: destination,
		logger:      logger,
	}
}

// ReceiveUpdate handles POST /{token}.
func (h *WebhookHandler) ReceiveUpdate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Error("failed to decode update", "error", err)
		writeError(w, http.StatusBadRequest, "invalid update body")
		return
	}

	h.updates.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

// Status handles GET /status.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"destination":  h.destination,
		"batch_active": h.runs.Active(h.destination),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

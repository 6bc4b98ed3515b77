package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP router: the webhook endpoint, batch status,
// health check and Prometheus metrics.
func NewRouter(webhook *WebhookHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", webhook.Status)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/{token}", webhook.ReceiveUpdate)

	logger.Debug("http routes registered")
	return r
}

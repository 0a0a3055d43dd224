package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
)

// NotificationHandler receives tracker update notifications
type NotificationHandler struct {
	db     *database.DB
	config *config.Config
	logger *slog.Logger
}

// NewNotificationHandler creates a new notification webhook handler
func NewNotificationHandler(db *database.DB, cfg *config.Config) *NotificationHandler {
	return &NotificationHandler{
		db:     db,
		config: cfg,
		logger: slog.Default(),
	}
}

// HandleVerification answers the subscriber endpoint verification probe:
// 204 for the expected code, 404 otherwise
func (h *NotificationHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("verify")

	if code != h.config.FitbitVerifyCode {
		h.logger.Warn("Verification probe with unexpected code")
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	h.logger.Info("Verification probe accepted")
	w.WriteHeader(http.StatusNoContent)
}

// HandleNotification enqueues an update batch for async processing. The
// sender retries slow or failed deliveries aggressively, so the response
// is 204 no matter what; failures are logged and the body dropped.
func (h *NotificationHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.HandleVerification(w, r)
		return
	}

	defer w.WriteHeader(http.StatusNoContent)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read notification body", "error", err)
		return
	}
	defer r.Body.Close()

	if !json.Valid(body) {
		h.logger.Error("Invalid JSON in notification body, dropping")
		return
	}

	id, err := h.db.EnqueueNotification(json.RawMessage(body))
	if err != nil {
		h.logger.Error("Failed to enqueue notification", "error", err)
		return
	}

	h.logger.Info("Notification enqueued", "id", id, "bytes", len(body))
}

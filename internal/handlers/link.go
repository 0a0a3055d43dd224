package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
)

// LinkHandler manages tracker credential intake and removal. The
// credential handshake itself happens outside this service; callers hand
// over the finished token pair through this API-key-guarded endpoint.
type LinkHandler struct {
	db     *database.DB
	fitbit *fitbit.Client
	config *config.Config
	logger *slog.Logger
}

// NewLinkHandler creates a tracker link handler
func NewLinkHandler(db *database.DB, fitbitClient *fitbit.Client, cfg *config.Config) *LinkHandler {
	return &LinkHandler{
		db:     db,
		fitbit: fitbitClient,
		config: cfg,
		logger: slog.Default(),
	}
}

type linkRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	TokenSecret string `json:"tokenSecret"`
}

// HandleLink stores tracker credentials and subscribes to the user's
// activity updates
func (h *LinkHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AccessToken == "" || req.TokenSecret == "" {
		http.Error(w, "userId, accessToken and tokenSecret are required", http.StatusBadRequest)
		return
	}

	if err := h.db.UpsertTrackerCredentials(req.UserID, req.AccessToken, req.TokenSecret); err != nil {
		h.logger.Error("Failed to store tracker credentials", "user_id", req.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.fitbit.CreateSubscription(r.Context(), req.UserID); err != nil {
		h.logger.Error("Failed to create subscription", "user_id", req.UserID, "error", err)
		http.Error(w, "Failed to subscribe to tracker updates", http.StatusBadGateway)
		return
	}

	h.logger.Info("Linked tracker", "user_id", req.UserID)
	writeJSON(w, map[string]string{"status": "linked", "userId": req.UserID})
}

type unlinkRequest struct {
	UserID string `json:"userId"`
}

// HandleUnlink removes the subscription and forgets the credentials
func (h *LinkHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req unlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// Clear upstream first while the credential still works
	if err := h.fitbit.ClearSubscriptions(r.Context(), req.UserID); err != nil {
		h.logger.Error("Failed to clear subscriptions", "user_id", req.UserID, "error", err)
	}

	if err := h.db.ClearTrackerCredentials(req.UserID); err != nil {
		h.logger.Error("Failed to clear tracker credentials", "user_id", req.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Unlinked tracker", "user_id", req.UserID)
	writeJSON(w, map[string]string{"status": "unlinked", "userId": req.UserID})
}

func (h *LinkHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-API-Key") != h.config.InternalAPIKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

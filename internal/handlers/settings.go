package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
)

// SettingsHandler reads and updates per-user notification preferences
type SettingsHandler struct {
	db     *database.DB
	config *config.Config
	logger *slog.Logger
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(db *database.DB, cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{
		db:     db,
		config: cfg,
		logger: slog.Default(),
	}
}

type settingsResponse struct {
	UserID        string `json:"userId"`
	HourlyUpdates bool   `json:"hourlyUpdates"`
	GoalUpdates   bool   `json:"goalUpdates"`
	BatteryLevel  bool   `json:"batteryLevel"`
}

type settingsRequest struct {
	UserID        string `json:"userId"`
	HourlyUpdates *bool  `json:"hourlyUpdates"`
	GoalUpdates   *bool  `json:"goalUpdates"`
	BatteryLevel  *bool  `json:"batteryLevel"`
}

// Handle serves GET ?user= to read preferences and POST to update them.
// Omitted fields in a POST keep their current value.
func (h *SettingsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != h.config.InternalAPIKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	prefs, err := h.db.GetOrCreatePreferences(userID)
	if err != nil {
		h.logger.Error("Failed to load preferences", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, toResponse(prefs))
}

func (h *SettingsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	prefs, err := h.db.GetOrCreatePreferences(req.UserID)
	if err != nil {
		h.logger.Error("Failed to load preferences", "user_id", req.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if req.HourlyUpdates != nil {
		prefs.HourlyUpdates = *req.HourlyUpdates
	}
	if req.GoalUpdates != nil {
		prefs.GoalUpdates = *req.GoalUpdates
	}
	if req.BatteryLevel != nil {
		prefs.BatteryLevel = *req.BatteryLevel
	}

	if err := h.db.SavePreferences(prefs); err != nil {
		h.logger.Error("Failed to save preferences", "user_id", req.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Updated preferences", "user_id", req.UserID,
		"hourly_updates", prefs.HourlyUpdates,
		"goal_updates", prefs.GoalUpdates,
		"battery_level", prefs.BatteryLevel)

	writeJSON(w, toResponse(prefs))
}

func toResponse(prefs *database.Preferences) settingsResponse {
	return settingsResponse{
		UserID:        prefs.UserID,
		HourlyUpdates: prefs.HourlyUpdates,
		GoalUpdates:   prefs.GoalUpdates,
		BatteryLevel:  prefs.BatteryLevel,
	}
}

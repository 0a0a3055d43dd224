package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"mdistance-sync/internal/oauth"
)

// OAuthHandler serves the display-account linking flow
type OAuthHandler struct {
	manager *oauth.Manager
	logger  *slog.Logger
}

// NewOAuthHandler creates an OAuth flow handler
func NewOAuthHandler(manager *oauth.Manager) *OAuthHandler {
	return &OAuthHandler{
		manager: manager,
		logger:  slog.Default(),
	}
}

// HandleAuthStart redirects the user to the display service consent page
func (h *OAuthHandler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, h.manager.AuthURL(userID), http.StatusFound)
}

// HandleCallback completes the flow with the authorization code
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("Authorization denied", "error", errParam)
		http.Error(w, "Authorization denied", http.StatusForbidden)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state are required", http.StatusBadRequest)
		return
	}

	userID, err := h.manager.HandleCallback(r.Context(), code, state)
	if err != nil {
		h.logger.Error("OAuth callback failed", "error", err)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Display account linked for %s\n", userID)
}

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
	"mdistance-sync/internal/mirror"
)

const stateTTL = 10 * time.Minute

type pendingState struct {
	userID    string
	expiresAt time.Time
}

// Manager runs the authorization-code flow that links a user's display
// account and persists the resulting token
type Manager struct {
	db       *database.DB
	oauthCfg *oauth2.Config
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]pendingState
}

// NewManager creates an OAuth flow manager for the display service
func NewManager(cfg *config.Config, db *database.DB) *Manager {
	return &Manager{
		db:       db,
		oauthCfg: mirror.OAuthConfig(cfg),
		logger:   slog.Default(),
		states:   make(map[string]pendingState),
	}
}

// AuthURL mints a single-use state token for the user and returns the
// consent page URL to redirect them to
func (m *Manager) AuthURL(userID string) string {
	state := uuid.NewString()

	m.mu.Lock()
	m.pruneLocked()
	m.states[state] = pendingState{userID: userID, expiresAt: time.Now().Add(stateTTL)}
	m.mu.Unlock()

	return m.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code, saves the token and
// returns the user it belongs to
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (string, error) {
	m.mu.Lock()
	pending, ok := m.states[state]
	delete(m.states, state)
	m.mu.Unlock()

	if !ok || time.Now().After(pending.expiresAt) {
		return "", fmt.Errorf("unknown or expired state")
	}

	token, err := m.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := m.db.SaveDisplayToken(pending.userID, string(tokenJSON)); err != nil {
		return "", fmt.Errorf("failed to save display token: %w", err)
	}

	m.logger.Info("Linked display account", "user_id", pending.userID)
	return pending.userID, nil
}

// pruneLocked drops expired states. Caller holds mu.
func (m *Manager) pruneLocked() {
	now := time.Now()
	for state, pending := range m.states {
		if now.After(pending.expiresAt) {
			delete(m.states, state)
		}
	}
}

package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
)

func newTestManager(t *testing.T) (*Manager, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		MirrorClientID:     "client-id",
		MirrorClientSecret: "client-secret",
		Domain:             "example.com",
	}
	return NewManager(cfg, db), db
}

// pointAtTokenServer redirects the code exchange to a local stub
func pointAtTokenServer(t *testing.T, m *Manager, handler http.Handler) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	m.oauthCfg.Endpoint.TokenURL = server.URL
}

func TestAuthURL(t *testing.T) {
	m, _ := newTestManager(t)

	rawURL := m.AuthURL("alice")

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Failed to parse auth URL: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("Expected client_id in URL, got %q", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("redirect_uri"), "example.com/oauth2callback") {
		t.Errorf("Unexpected redirect_uri %q", q.Get("redirect_uri"))
	}

	state := q.Get("state")
	if state == "" {
		t.Fatal("Expected state parameter")
	}
	if _, ok := m.states[state]; !ok {
		t.Error("Expected state tracked for callback validation")
	}

	// Each start gets its own state
	other := m.AuthURL("alice")
	if other == rawURL {
		t.Error("Expected unique state per auth start")
	}
}

func TestHandleCallbackSavesToken(t *testing.T) {
	m, db := newTestManager(t)
	pointAtTokenServer(t, m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"display-tok","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`))
	}))

	rawURL := m.AuthURL("alice")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Failed to parse auth URL: %v", err)
	}
	state := parsed.Query().Get("state")

	userID, err := m.HandleCallback(context.Background(), "auth-code", state)
	if err != nil {
		t.Fatalf("Callback failed: %v", err)
	}
	if userID != "alice" {
		t.Errorf("Expected alice, got %s", userID)
	}

	stored, err := db.DisplayToken("alice")
	if err != nil {
		t.Fatalf("Failed to load display token: %v", err)
	}
	if !strings.Contains(stored, "display-tok") {
		t.Errorf("Expected persisted token, got %q", stored)
	}

	// State is single use
	if _, err := m.HandleCallback(context.Background(), "auth-code", state); err == nil {
		t.Error("Expected replayed state rejected")
	}
}

func TestHandleCallbackRejectsUnknownState(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.HandleCallback(context.Background(), "code", "never-issued"); err == nil {
		t.Fatal("Expected error for unknown state")
	}
}

func TestHandleCallbackRejectsExpiredState(t *testing.T) {
	m, _ := newTestManager(t)

	m.states["stale"] = pendingState{userID: "alice", expiresAt: time.Now().Add(-time.Minute)}

	if _, err := m.HandleCallback(context.Background(), "code", "stale"); err == nil {
		t.Fatal("Expected error for expired state")
	}
	if _, ok := m.states["stale"]; ok {
		t.Error("Expected expired state removed")
	}
}

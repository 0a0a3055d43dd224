package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mdistance-sync/internal/config"
)

func TestSettingsRequiresAPIKey(t *testing.T) {
	h := NewSettingsHandler(openTestDB(t), &config.Config{InternalAPIKey: "secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/internal/settings?user=alice", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without API key, got %d", rec.Code)
	}
}

func TestSettingsDefaultsOn(t *testing.T) {
	h := NewSettingsHandler(openTestDB(t), &config.Config{InternalAPIKey: "secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/internal/settings?user=alice", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.HourlyUpdates || !resp.GoalUpdates || !resp.BatteryLevel {
		t.Errorf("Expected all preferences on by default, got %+v", resp)
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	db := openTestDB(t)
	h := NewSettingsHandler(db, &config.Config{InternalAPIKey: "secret-key"})

	req := httptest.NewRequest(http.MethodPost, "/internal/settings",
		strings.NewReader(`{"userId":"alice","goalUpdates":false}`))
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	prefs, err := db.GetOrCreatePreferences("alice")
	if err != nil {
		t.Fatalf("Failed to load preferences: %v", err)
	}
	if prefs.GoalUpdates {
		t.Error("Expected goal updates off")
	}
	// Omitted fields keep their values
	if !prefs.HourlyUpdates || !prefs.BatteryLevel {
		t.Errorf("Expected untouched preferences on, got %+v", prefs)
	}
}

func TestSettingsRequiresUserID(t *testing.T) {
	h := NewSettingsHandler(openTestDB(t), &config.Config{InternalAPIKey: "secret-key"})

	req := httptest.NewRequest(http.MethodPost, "/internal/settings",
		strings.NewReader(`{"goalUpdates":false}`))
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without userId, got %d", rec.Code)
	}
}

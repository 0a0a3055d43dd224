package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/mirror"
)

const displayToken = `{"access_token":"display-tok","token_type":"Bearer","expiry":"2099-01-01T00:00:00Z"}`

type dispatcherFixture struct {
	db         *database.DB
	dispatcher *Dispatcher

	mirrorStatus        int
	subscriptionDeletes *int
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &dispatcherFixture{db: db, mirrorStatus: http.StatusOK}

	mirrorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.mirrorStatus != http.StatusOK {
			http.Error(w, "rejected", f.mirrorStatus)
			return
		}
		w.Write([]byte(`{"id": "item-1"}`))
	}))
	t.Cleanup(mirrorServer.Close)

	deletes := 0
	f.subscriptionDeletes = &deletes
	fitbitServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"apiSubscriptions": [
				{"subscriptionId": "sub-1", "subscriberId": "m-distance", "collectionType": "activities", "ownerId": "alice"}
			]}`))
		case http.MethodDelete:
			deletes++
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(fitbitServer.Close)

	cfg := &config.Config{
		FitbitBaseURL:      fitbitServer.URL,
		FitbitSubscriberID: "m-distance",
		MirrorBaseURL:      mirrorServer.URL,
		MirrorClientID:     "client-id",
		MirrorClientSecret: "client-secret",
		Domain:             "example.com",
	}

	if err := db.UpsertTrackerCredentials("alice", "tok", "sec"); err != nil {
		t.Fatalf("Failed to link tracker: %v", err)
	}
	if err := db.SaveDisplayToken("alice", displayToken); err != nil {
		t.Fatalf("Failed to save display token: %v", err)
	}

	f.dispatcher = NewDispatcher(db, mirror.NewClient(cfg, db), fitbit.NewClient(cfg, db))
	return f
}

func (f *dispatcherFixture) seedStats(t *testing.T, steps int) *database.ActivityStats {
	t.Helper()
	stats, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to create stats: %v", err)
	}
	stats.Steps = steps
	if err := f.db.SaveStats(stats); err != nil {
		t.Fatalf("Failed to save stats: %v", err)
	}
	return stats
}

func TestDispatchProgressMarksReported(t *testing.T) {
	f := newDispatcherFixture(t)
	stats := f.seedStats(t, 8500)

	result := f.dispatcher.DispatchProgress(context.Background(), "alice", stats, database.DefaultGoals("alice"))
	if result != ResultSuccess {
		t.Fatalf("Expected success, got %v", result)
	}

	reloaded, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to reload stats: %v", err)
	}
	if !reloaded.Reported {
		t.Error("Expected stats marked reported after successful dispatch")
	}

	// The inserted item id is remembered
	itemID, err := f.db.GetTimelineItem("alice")
	if err != nil {
		t.Fatalf("Failed to load timeline item: %v", err)
	}
	if itemID != "item-1" {
		t.Errorf("Expected item-1, got %q", itemID)
	}
}

func TestDispatchLeavesReportedWhenStatsChangedMeanwhile(t *testing.T) {
	f := newDispatcherFixture(t)
	stats := f.seedStats(t, 8500)

	// The stored record moves on while the card is in flight
	f.seedStats(t, 9000)

	result := f.dispatcher.DispatchProgress(context.Background(), "alice", stats, database.DefaultGoals("alice"))
	if result != ResultSuccess {
		t.Fatalf("Expected success, got %v", result)
	}

	reloaded, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to reload stats: %v", err)
	}
	if reloaded.Reported {
		t.Error("Expected newer values to stay unreported")
	}
}

func TestDispatchBatteryNeverTouchesReported(t *testing.T) {
	f := newDispatcherFixture(t)
	f.seedStats(t, 8500)

	result := f.dispatcher.DispatchBattery(context.Background(), "alice", fitbit.Device{
		DeviceVersion: "Flex", Battery: "Low",
	})
	if result != ResultSuccess {
		t.Fatalf("Expected success, got %v", result)
	}

	stats, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to reload stats: %v", err)
	}
	if stats.Reported {
		t.Error("Expected battery card to leave reported untouched")
	}
}

func TestDispatchAuthFailureDisablesUser(t *testing.T) {
	f := newDispatcherFixture(t)
	stats := f.seedStats(t, 8500)
	f.mirrorStatus = http.StatusUnauthorized

	result := f.dispatcher.DispatchProgress(context.Background(), "alice", stats, database.DefaultGoals("alice"))
	if result != ResultAuthFailure {
		t.Fatalf("Expected auth failure, got %v", result)
	}

	// The one upstream subscription is deleted, once
	if *f.subscriptionDeletes != 1 {
		t.Errorf("Expected 1 subscription delete, got %d", *f.subscriptionDeletes)
	}

	user, err := f.db.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}
	if user == nil || !user.NotifyDisabled {
		t.Error("Expected user marked notify-disabled")
	}

	reloaded, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to reload stats: %v", err)
	}
	if reloaded.Reported {
		t.Error("Expected stats unreported after auth failure")
	}
}

func TestDispatchSuppressedForDisabledUser(t *testing.T) {
	f := newDispatcherFixture(t)
	stats := f.seedStats(t, 8500)
	if err := f.db.SetNotifyDisabled("alice", true); err != nil {
		t.Fatalf("Failed to disable user: %v", err)
	}

	result := f.dispatcher.DispatchProgress(context.Background(), "alice", stats, database.DefaultGoals("alice"))
	if result != ResultSuppressed {
		t.Fatalf("Expected suppressed, got %v", result)
	}
}

func TestDispatchOtherFailureLeavesStateAlone(t *testing.T) {
	f := newDispatcherFixture(t)
	stats := f.seedStats(t, 8500)
	f.mirrorStatus = http.StatusInternalServerError

	result := f.dispatcher.DispatchProgress(context.Background(), "alice", stats, database.DefaultGoals("alice"))
	if result != ResultOtherFailure {
		t.Fatalf("Expected other failure, got %v", result)
	}

	user, err := f.db.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}
	if user.NotifyDisabled {
		t.Error("Expected user still enabled after transient failure")
	}

	reloaded, _, err := f.db.GetOrCreateStats("alice")
	if err != nil {
		t.Fatalf("Failed to reload stats: %v", err)
	}
	if reloaded.Reported {
		t.Error("Expected stats unreported after transient failure")
	}
}

package fitbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mdistance-sync/internal/config"
)

type staticTokens struct {
	token  string
	secret string
}

func (s staticTokens) TrackerToken(userID string) (string, string, error) {
	return s.token, s.secret, nil
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		FitbitBaseURL:      server.URL,
		FitbitSubscriberID: "m-distance",
	}
	return NewClient(cfg, staticTokens{token: "tok", secret: "sec"})
}

func TestIsReady(t *testing.T) {
	cfg := &config.Config{FitbitBaseURL: "http://unused", FitbitSubscriberID: "m-distance"}

	linked := NewClient(cfg, staticTokens{token: "tok"})
	if !linked.IsReady("alice") {
		t.Error("Expected linked user to be ready")
	}

	unlinked := NewClient(cfg, staticTokens{})
	if unlinked.IsReady("alice") {
		t.Error("Expected unlinked user to not be ready")
	}
}

func TestGetActivitiesInfo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		if r.URL.Path != "/1/user/-/activities/date/2026-08-28.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"summary": {
				"steps": 8500,
				"floors": 6,
				"caloriesOut": 1900,
				"activeMinutes": 42,
				"distances": [{"activity": "total", "distance": 6.4}]
			},
			"goals": {
				"steps": 10000,
				"floors": 10,
				"distance": 8.05,
				"caloriesOut": 2500,
				"activeMinutes": 30
			}
		}`))
	}))

	snapshot, err := client.GetActivitiesInfo(context.Background(), "alice", "2026-08-28")
	if err != nil {
		t.Fatalf("Failed to get activities: %v", err)
	}
	if snapshot == nil {
		t.Fatal("Expected snapshot")
	}
	if snapshot.Summary == nil || snapshot.Summary.Steps == nil || *snapshot.Summary.Steps != 8500 {
		t.Errorf("Unexpected summary %+v", snapshot.Summary)
	}
	if len(snapshot.Summary.Distances) != 1 || snapshot.Summary.Distances[0].Distance != 6.4 {
		t.Errorf("Unexpected distances %+v", snapshot.Summary.Distances)
	}
	if snapshot.Goals == nil || snapshot.Goals.Distance == nil || *snapshot.Goals.Distance != 8.05 {
		t.Errorf("Unexpected goals %+v", snapshot.Goals)
	}
}

func TestGetActivitiesInfoFailSoft(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))

	snapshot, err := client.GetActivitiesInfo(context.Background(), "alice", "2026-08-28")
	if err != nil {
		t.Fatalf("Expected fail-soft nil, got error: %v", err)
	}
	if snapshot != nil {
		t.Errorf("Expected nil snapshot on non-success response, got %+v", snapshot)
	}
}

func TestGetActivitiesInfoMalformed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary": not json`))
	}))

	_, err := client.GetActivitiesInfo(context.Background(), "alice", "2026-08-28")
	if err == nil {
		t.Fatal("Expected error for undecodable payload")
	}
}

func TestGetDevicesFailSoft(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	devices := client.GetDevices(context.Background(), "alice")
	if devices != nil {
		t.Errorf("Expected nil device list, got %+v", devices)
	}
}

func TestLowBattery(t *testing.T) {
	cases := []struct {
		battery string
		want    bool
	}{
		{"High", false},
		{"Medium", false},
		{"Low", true},
		{"Empty", true},
	}
	for _, tc := range cases {
		d := Device{Battery: tc.battery}
		if d.LowBattery() != tc.want {
			t.Errorf("LowBattery(%s) = %v, want %v", tc.battery, d.LowBattery(), tc.want)
		}
	}
}

func TestCreateSubscriptionClearsExisting(t *testing.T) {
	var deleted []string
	var created int

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/1/user/-/apiSubscriptions.json":
			w.Write([]byte(`{"apiSubscriptions": [
				{"subscriptionId": "old-1", "subscriberId": "m-distance", "collectionType": "activities", "ownerId": "alice"},
				{"subscriptionId": "other", "subscriberId": "someone-else", "collectionType": "activities", "ownerId": "alice"}
			]}`))
		case r.Method == http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost:
			created++
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"subscriptionId": "alice"}`))
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	if err := client.CreateSubscription(context.Background(), "alice"); err != nil {
		t.Fatalf("Failed to create subscription: %v", err)
	}

	// Only our own stale subscription is deleted, then one create
	if len(deleted) != 1 || deleted[0] != "/1/user/-/apiSubscriptions/old-1.json" {
		t.Errorf("Unexpected deletes %v", deleted)
	}
	if created != 1 {
		t.Errorf("Expected 1 create, got %d", created)
	}
}

func TestGetSubscriptionsFiltersForeignSubscribers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiSubscriptions": [
			{"subscriptionId": "mine", "subscriberId": "m-distance"},
			{"subscriptionId": "foreign", "subscriberId": "elsewhere"}
		]}`))
	}))

	subs := client.GetSubscriptions(context.Background(), "alice")
	if len(subs) != 1 || subs[0].SubscriptionID != "mine" {
		t.Errorf("Expected only our subscription, got %+v", subs)
	}
}

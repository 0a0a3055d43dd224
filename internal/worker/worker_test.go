package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mdistance-sync/internal/database"
)

type stubProcessor struct {
	bodies []string
	err    error
}

func (p *stubProcessor) ProcessBatch(ctx context.Context, raw json.RawMessage) error {
	p.bodies = append(p.bodies, string(raw))
	return p.err
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProcessCompletesSuccessfulItem(t *testing.T) {
	db := openTestDB(t)
	processor := &stubProcessor{}
	w := NewWorker(db, processor)

	id, err := db.EnqueueNotification(json.RawMessage(`[{"subscriberId":"alice"}]`))
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	item, err := db.ClaimNotification()
	if err != nil || item == nil {
		t.Fatalf("Failed to claim: item=%v err=%v", item, err)
	}

	w.process(context.Background(), item)

	if len(processor.bodies) != 1 {
		t.Fatalf("Expected one processed body, got %d", len(processor.bodies))
	}

	length, err := db.GetQueueLength()
	if err != nil {
		t.Fatalf("Failed to get queue length: %v", err)
	}
	if length != 0 {
		t.Errorf("Expected item %d removed after success, queue length %d", id, length)
	}
}

func TestProcessReleasesFailedItem(t *testing.T) {
	db := openTestDB(t)
	processor := &stubProcessor{err: errors.New("database locked")}
	w := NewWorker(db, processor)

	if _, err := db.EnqueueNotification(json.RawMessage(`[]`)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	item, err := db.ClaimNotification()
	if err != nil || item == nil {
		t.Fatalf("Failed to claim: item=%v err=%v", item, err)
	}

	w.process(context.Background(), item)

	// Still queued, but backing off
	length, err := db.GetQueueLength()
	if err != nil {
		t.Fatalf("Failed to get queue length: %v", err)
	}
	if length != 1 {
		t.Errorf("Expected failed item kept, queue length %d", length)
	}

	ready, err := db.GetReadyQueueLength()
	if err != nil {
		t.Fatalf("Failed to get ready length: %v", err)
	}
	if ready != 0 {
		t.Errorf("Expected failed item in backoff, ready length %d", ready)
	}
}

func TestStartDrainsQueueAndStopsOnCancel(t *testing.T) {
	db := openTestDB(t)
	processor := &stubProcessor{}
	w := NewWorker(db, processor)
	w.pollInterval = 10 * time.Millisecond

	for i := 0; i < 3; i++ {
		if _, err := db.EnqueueNotification(json.RawMessage(`[]`)); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		length, err := db.GetQueueLength()
		if err != nil {
			t.Fatalf("Failed to get queue length: %v", err)
		}
		if length == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Queue not drained, %d items left", length)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Worker did not stop after cancel")
	}

	if len(processor.bodies) != 3 {
		t.Errorf("Expected 3 processed bodies, got %d", len(processor.bodies))
	}
}

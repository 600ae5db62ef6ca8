package history_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"vidisnap/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "logs", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := store.Add(ctx, history.Record{
			RequestID:   fmt.Sprintf("req-%d", i),
			Extension:   ".mp4",
			UploadBytes: int64(100 * i),
			Outcome:     history.OutcomeSuccess,
			Status:      200,
			Duration:    time.Duration(i) * time.Second,
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RequestID != "req-2" {
		t.Fatalf("expected newest first, got %q", records[0].RequestID)
	}
	if records[0].Duration != 2*time.Second {
		t.Fatalf("unexpected duration %v", records[0].Duration)
	}
	if records[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestSummarizeAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	add := func(outcome, kind string, status int) {
		t.Helper()
		if _, err := store.Add(ctx, history.Record{RequestID: "r", Outcome: outcome, Kind: kind, Status: status}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	add(history.OutcomeSuccess, "", 200)
	add(history.OutcomeFailed, "extraction", 500)
	add(history.OutcomeFailed, "extraction", 500)
	add(history.OutcomeFailed, "invalid_format", 400)

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 4 || summary.Succeeded != 1 || summary.Failed != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.ByKind["extraction"] != 2 {
		t.Fatalf("expected 2 extraction failures, got %d", summary.ByKind["extraction"])
	}

	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 pruned, got %d", removed)
	}
	if n, _ := store.Prune(ctx, 0); n != 0 {
		t.Fatalf("expected retain=0 to keep everything, removed %d", n)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Add(context.Background(), history.Record{RequestID: "a", Outcome: history.OutcomeSuccess, Status: 200}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	records, err := reopened.Recent(context.Background(), 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected persisted record, got %d (%v)", len(records), err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := history.Open("  "); err == nil {
		t.Fatal("expected error")
	}
}

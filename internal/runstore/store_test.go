package runstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/iotsim-core/internal/infrastructure/database"
	"github.com/nerrad567/iotsim-core/internal/metrics"
	_ "github.com/nerrad567/iotsim-core/migrations" // register embedded schema
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "runs.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return New(db)
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, "run-1", "bench", 7); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("new run status = %q, want %q", run.Status, StatusRunning)
	}
	if run.FinishedAt != nil {
		t.Error("new run should have no finished_at")
	}
	if run.DeliveryRatio != nil {
		t.Error("new run should have no summary figures")
	}

	summary := metrics.Summary{
		Scenario:       "bench",
		DeliveryRatio:  0.98,
		AvgLatencyMS:   24.5,
		Duplicates:     3,
		EnergyMJ:       12.25,
		QueueDrops:     1,
		SendEvents:     200,
		DeliveryEvents: 196,
	}
	if err := store.FinishRun(ctx, "run-1", StatusCompleted, summary); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() after finish error = %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("finished run status = %q, want %q", run.Status, StatusCompleted)
	}
	if run.FinishedAt == nil {
		t.Error("finished run should have finished_at")
	}
	if run.DeliveryRatio == nil || *run.DeliveryRatio != 0.98 {
		t.Errorf("delivery ratio = %v, want 0.98", run.DeliveryRatio)
	}
	if run.SendEvents == nil || *run.SendEvents != 200 {
		t.Errorf("send events = %v, want 200", run.SendEvents)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want %v", err, ErrNotFound)
	}
	if err := store.FinishRun(context.Background(), "missing", StatusCompleted, metrics.Summary{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun() error = %v, want %v", err, ErrNotFound)
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, "run-2", "bench", 7); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	want := []metrics.Snapshot{
		{
			Timestamp:      10,
			DeliveryRatio:  1,
			AvgLatencyMS:   20,
			SendEvents:     5,
			DeliveryEvents: 5,
			TopicRates:     map[string]float64{"status/a": 0.5},
			ClientStates:   map[string]metrics.ClientState{"a": metrics.StateConnected},
			Positions:      map[string]metrics.Position{"a": {X: 1.5, Y: 2.5}},
		},
		{
			Timestamp:      20,
			DeliveryRatio:  0.9,
			AvgLatencyMS:   22,
			Duplicates:     1,
			SendEvents:     10,
			DeliveryEvents: 9,
		},
	}
	for _, snap := range want {
		if err := store.InsertSnapshot(ctx, "run-2", snap); err != nil {
			t.Fatalf("InsertSnapshot() error = %v", err)
		}
	}

	got, err := store.Snapshots(ctx, "run-2")
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Snapshots() returned %d rows, want 2", len(got))
	}
	if got[0].Timestamp != 10 || got[1].Timestamp != 20 {
		t.Errorf("snapshots out of order: %v, %v", got[0].Timestamp, got[1].Timestamp)
	}
	if got[0].Positions["a"] != (metrics.Position{X: 1.5, Y: 2.5}) {
		t.Errorf("position detail = %+v, want preserved", got[0].Positions["a"])
	}
	if got[0].ClientStates["a"] != metrics.StateConnected {
		t.Errorf("client state detail = %q, want connected", got[0].ClientStates["a"])
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.CreateRun(ctx, id, "bench", 1); err != nil {
			t.Fatalf("CreateRun(%s) error = %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(2) returned %d runs, want 2", len(runs))
	}
	// Same second timestamps fall back to id ordering, newest id first.
	if runs[0].ID != "run-c" {
		t.Errorf("first listed run = %q, want run-c", runs[0].ID)
	}
}

package sim

import (
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

func TestControllerCompletesRun(t *testing.T) {
	ctrl := NewController(testLogger())

	var completedID string
	var doneOnce sync.Once
	done := make(chan struct{})
	ctrl.OnComplete = func(runID string, result Result, err error) {
		completedID = runID
		doneOnce.Do(func() { close(done) })
	}

	sc := benchScenario(2, 0, 100)
	sc.DurationS = 60

	runID, err := ctrl.Start(sc)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if runID == "" {
		t.Fatal("Start() returned empty run id")
	}

	ctrl.Wait()
	<-done

	if completedID != runID {
		t.Errorf("OnComplete run id = %q, want %q", completedID, runID)
	}
	if got := ctrl.Status(); got != StatusCompleted {
		t.Errorf("Status() = %q, want %q", got, StatusCompleted)
	}
	result := ctrl.LastResult()
	if result == nil {
		t.Fatal("LastResult() = nil after completed run")
	}
	if len(result.Snapshots) == 0 {
		t.Error("completed run captured no snapshots")
	}
	if result.Stopped {
		t.Error("run reported stopped without a Stop call")
	}

	// The slot is reusable after completion.
	secondID, err := ctrl.Start(sc)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if secondID == runID {
		t.Error("second run reused the first run's id")
	}
	ctrl.Wait()
}

func TestControllerRejectsConcurrentRuns(t *testing.T) {
	ctrl := NewController(testLogger())

	// An unbuffered snapshot channel holds the simulation goroutine inside
	// the run until the test drains it.
	snapC := make(chan metrics.Snapshot)
	ctrl.OnSnapshot = func(_ string, snap metrics.Snapshot) { snapC <- snap }

	sc := benchScenario(2, 0, 100)
	sc.DurationS = 10000
	sc.SnapshotIntervalS = 1

	if _, err := ctrl.Start(sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-snapC // run is provably active

	if !ctrl.IsRunning() {
		t.Error("IsRunning() = false during an active run")
	}
	if _, err := ctrl.Start(sc); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("concurrent Start() error = %v, want %v", err, ErrAlreadyRunning)
	}
	if err := ctrl.TriggerFailover(5); err != nil {
		t.Errorf("TriggerFailover() error = %v", err)
	}

	go func() {
		for range snapC {
		}
	}()
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	close(snapC)

	result := ctrl.LastResult()
	if result == nil || !result.Stopped {
		t.Error("stopped run should report Stopped = true")
	}
	if stats := ctrl.Stats(); stats.Status != StatusCompleted {
		t.Errorf("Stats().Status = %q, want %q", stats.Status, StatusCompleted)
	}
}

func TestControllerStopWithoutRun(t *testing.T) {
	ctrl := NewController(testLogger())
	if err := ctrl.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want %v", err, ErrNotRunning)
	}
	if err := ctrl.TriggerFailover(5); !errors.Is(err, ErrNotRunning) {
		t.Errorf("TriggerFailover() error = %v, want %v", err, ErrNotRunning)
	}
	if got := ctrl.Status(); got != StatusIdle {
		t.Errorf("Status() = %q, want %q", got, StatusIdle)
	}
}

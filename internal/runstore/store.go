package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iotsim-core/internal/infrastructure/database"
	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// Run is one persisted run row. Summary fields are nil until the run
// finishes.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	Seed       int64      `json:"seed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`

	DeliveryRatio  *float64 `json:"delivery_ratio,omitempty"`
	AvgLatencyMS   *float64 `json:"avg_latency_ms,omitempty"`
	Duplicates     *int     `json:"duplicates,omitempty"`
	EnergyMJ       *float64 `json:"energy_mj,omitempty"`
	QueueDrops     *int     `json:"queue_drops,omitempty"`
	SendEvents     *int     `json:"send_events,omitempty"`
	DeliveryEvents *int     `json:"delivery_events,omitempty"`
}

// Store reads and writes run history.
type Store struct {
	db *database.DB
}

// New creates a store on an open database. The caller is responsible for
// having run migrations.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// CreateRun inserts a new run row in the running state.
func (s *Store) CreateRun(ctx context.Context, id, scenario string, seed int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, seed, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		id, scenario, seed, time.Now().UTC().Format(time.RFC3339), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("runstore: creating run %s: %w", id, err)
	}
	return nil
}

// FinishRun records the terminal status and summary figures for a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, summary metrics.Summary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			status = ?,
			delivery_ratio = ?,
			avg_latency_ms = ?,
			duplicates = ?,
			energy_mj = ?,
			queue_drops = ?,
			send_events = ?,
			delivery_events = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		status,
		summary.DeliveryRatio,
		summary.AvgLatencyMS,
		summary.Duplicates,
		summary.EnergyMJ,
		summary.QueueDrops,
		summary.SendEvents,
		summary.DeliveryEvents,
		id,
	)
	if err != nil {
		return fmt.Errorf("runstore: finishing run %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runstore: finishing run %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSnapshot persists one snapshot: headline columns for SQL access,
// the full detail as JSON.
func (s *Store) InsertSnapshot(ctx context.Context, runID string, snap metrics.Snapshot) error {
	detail, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("runstore: encoding snapshot detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (
			run_id, timestamp, delivery_ratio, avg_latency_ms, duplicates,
			energy_mj, queue_depth, queue_drops, send_events, delivery_events,
			sleep_ratio_avg, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.Timestamp, snap.DeliveryRatio, snap.AvgLatencyMS, snap.Duplicates,
		snap.EnergyMJ, snap.QueueDepth, snap.QueueDrops, snap.SendEvents, snap.DeliveryEvents,
		snap.SleepRatioAvg, string(detail),
	)
	if err != nil {
		return fmt.Errorf("runstore: inserting snapshot for %s: %w", runID, err)
	}
	return nil
}

// GetRun fetches one run row. Returns ErrNotFound when the id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, seed, started_at, finished_at, status,
			delivery_ratio, avg_latency_ms, duplicates, energy_mj,
			queue_drops, send_events, delivery_events
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("runstore: loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, scenario, seed, started_at, finished_at, status,
			delivery_ratio, avg_latency_ms, duplicates, energy_mj,
			queue_drops, send_events, delivery_events
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("runstore: scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: iterating runs: %w", err)
	}
	return runs, nil
}

// Snapshots returns a run's full snapshot sequence in time order, decoded
// from the stored JSON detail.
func (s *Store) Snapshots(ctx context.Context, runID string) ([]metrics.Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		"SELECT detail FROM snapshots WHERE run_id = ? ORDER BY timestamp", runID)
	if err != nil {
		return nil, fmt.Errorf("runstore: loading snapshots for %s: %w", runID, err)
	}
	defer rows.Close()

	var snapshots []metrics.Snapshot
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("runstore: scanning snapshot row: %w", err)
		}
		var snap metrics.Snapshot
		if err := json.Unmarshal([]byte(detail), &snap); err != nil {
			return nil, fmt.Errorf("runstore: decoding snapshot detail: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// scanRun reads one run row via the given scan function, so a *sql.Row and
// *sql.Rows share the decoding path.
func scanRun(scan func(dest ...any) error) (Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString

	err := scan(
		&run.ID, &run.Scenario, &run.Seed, &startedAt, &finishedAt, &run.Status,
		&run.DeliveryRatio, &run.AvgLatencyMS, &run.Duplicates, &run.EnergyMJ,
		&run.QueueDrops, &run.SendEvents, &run.DeliveryEvents,
	)
	if err != nil {
		return Run{}, err
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt) //nolint:errcheck // Format is controlled
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String) //nolint:errcheck // Format is controlled
		run.FinishedAt = &t
	}
	return run, nil
}

package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// csvHeader is the fixed column order of the snapshot table.
var csvHeader = []string{
	"timestamp",
	"delivery_ratio",
	"avg_latency_ms",
	"duplicates",
	"energy_mj",
	"queue_depth",
	"queue_drops",
	"send_events",
	"delivery_events",
	"sleep_ratio_avg",
}

// WriteSnapshotsCSV writes one row per snapshot. Floats use the shortest
// exact representation so a read-back compares equal.
func WriteSnapshotsCSV(w io.Writer, snapshots []metrics.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}
	for _, s := range snapshots {
		row := []string{
			formatFloat(s.Timestamp),
			formatFloat(s.DeliveryRatio),
			formatFloat(s.AvgLatencyMS),
			strconv.Itoa(s.Duplicates),
			formatFloat(s.EnergyMJ),
			strconv.Itoa(s.QueueDepth),
			strconv.Itoa(s.QueueDrops),
			strconv.Itoa(s.SendEvents),
			strconv.Itoa(s.DeliveryEvents),
			formatFloat(s.SleepRatioAvg),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flushing csv: %w", err)
	}
	return nil
}

// ReadSnapshotsCSV parses a table written by WriteSnapshotsCSV. Only the
// columns the CSV carries are populated; per-client maps stay nil.
func ReadSnapshotsCSV(r io.Reader) ([]metrics.Snapshot, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export: empty csv")
	}
	if got, want := len(records[0]), len(csvHeader); got != want {
		return nil, fmt.Errorf("export: header has %d columns, want %d", got, want)
	}

	snapshots := make([]metrics.Snapshot, 0, len(records)-1)
	for i, row := range records[1:] {
		s, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i+1, err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

func parseRow(row []string) (metrics.Snapshot, error) {
	var s metrics.Snapshot
	if len(row) != len(csvHeader) {
		return s, fmt.Errorf("has %d columns, want %d", len(row), len(csvHeader))
	}

	var err error
	if s.Timestamp, err = strconv.ParseFloat(row[0], 64); err != nil {
		return s, fmt.Errorf("timestamp: %w", err)
	}
	if s.DeliveryRatio, err = strconv.ParseFloat(row[1], 64); err != nil {
		return s, fmt.Errorf("delivery_ratio: %w", err)
	}
	if s.AvgLatencyMS, err = strconv.ParseFloat(row[2], 64); err != nil {
		return s, fmt.Errorf("avg_latency_ms: %w", err)
	}
	if s.Duplicates, err = strconv.Atoi(row[3]); err != nil {
		return s, fmt.Errorf("duplicates: %w", err)
	}
	if s.EnergyMJ, err = strconv.ParseFloat(row[4], 64); err != nil {
		return s, fmt.Errorf("energy_mj: %w", err)
	}
	if s.QueueDepth, err = strconv.Atoi(row[5]); err != nil {
		return s, fmt.Errorf("queue_depth: %w", err)
	}
	if s.QueueDrops, err = strconv.Atoi(row[6]); err != nil {
		return s, fmt.Errorf("queue_drops: %w", err)
	}
	if s.SendEvents, err = strconv.Atoi(row[7]); err != nil {
		return s, fmt.Errorf("send_events: %w", err)
	}
	if s.DeliveryEvents, err = strconv.Atoi(row[8]); err != nil {
		return s, fmt.Errorf("delivery_events: %w", err)
	}
	if s.SleepRatioAvg, err = strconv.ParseFloat(row[9], 64); err != nil {
		return s, fmt.Errorf("sleep_ratio_avg: %w", err)
	}
	return s, nil
}

// Report is the JSON export: summary plus the full snapshot sequence.
type Report struct {
	Summary   metrics.Summary    `json:"summary"`
	Snapshots []metrics.Snapshot `json:"snapshots"`
}

// WriteReportJSON writes the full run detail as indented JSON. An infinite
// battery estimate (nothing drew power) is encoded as -1, since JSON has no
// infinity.
func WriteReportJSON(w io.Writer, summary metrics.Summary, snapshots []metrics.Snapshot) error {
	if math.IsInf(summary.AvgBatteryDays, 1) {
		summary.AvgBatteryDays = -1
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Report{Summary: summary, Snapshots: snapshots}); err != nil {
		return fmt.Errorf("export: encoding report: %w", err)
	}
	return nil
}

// SaveCSV writes the snapshot table to a file.
func SaveCSV(path string, snapshots []metrics.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteSnapshotsCSV(f, snapshots)
}

// SaveJSON writes the full report to a file.
func SaveJSON(path string, summary metrics.Summary, snapshots []metrics.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteReportJSON(f, summary, snapshots)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

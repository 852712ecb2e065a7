package export

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

func sampleSnapshots() []metrics.Snapshot {
	return []metrics.Snapshot{
		{
			Timestamp:      10,
			DeliveryRatio:  1,
			AvgLatencyMS:   23.456789012345,
			Duplicates:     0,
			EnergyMJ:       0.0031415926535,
			QueueDepth:     2,
			QueueDrops:     0,
			SendEvents:     7,
			DeliveryEvents: 7,
			SleepRatioAvg:  0.98765,
		},
		{
			Timestamp:      20,
			DeliveryRatio:  0.9473684210526315,
			AvgLatencyMS:   25.1,
			Duplicates:     3,
			EnergyMJ:       0.0062831853071,
			QueueDepth:     0,
			QueueDrops:     1,
			SendEvents:     19,
			DeliveryEvents: 18,
			SleepRatioAvg:  0.97,
		},
	}
}

func TestCSVRoundTripIsExact(t *testing.T) {
	want := sampleSnapshots()

	var buf bytes.Buffer
	if err := WriteSnapshotsCSV(&buf, want); err != nil {
		t.Fatalf("WriteSnapshotsCSV() error = %v", err)
	}

	got, err := ReadSnapshotsCSV(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshotsCSV() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip diverged:\n got  %+v\n want %+v", got, want)
	}
}

func TestCSVHeaderAndShape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshotsCSV(&buf, sampleSnapshots()); err != nil {
		t.Fatalf("WriteSnapshotsCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv has %d lines, want header + 2 rows", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Errorf("header = %q, want %q", lines[0], strings.Join(csvHeader, ","))
	}
}

func TestReadSnapshotsCSVRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "wrong column count", input: "timestamp,delivery_ratio\n1,0.5\n"},
		{
			name:  "non-numeric field",
			input: strings.Join(csvHeader, ",") + "\nten,1,2,3,4,5,6,7,8,9\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSnapshotsCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("ReadSnapshotsCSV() expected error, got nil")
			}
		})
	}
}

func TestReportJSONHandlesInfiniteBattery(t *testing.T) {
	summary := metrics.Summary{
		Scenario:       "bench",
		DeliveryRatio:  1,
		AvgBatteryDays: math.Inf(1),
	}

	var buf bytes.Buffer
	if err := WriteReportJSON(&buf, summary, sampleSnapshots()); err != nil {
		t.Fatalf("WriteReportJSON() error = %v", err)
	}

	var report Report
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report.Summary.AvgBatteryDays != -1 {
		t.Errorf("AvgBatteryDays = %v, want -1 sentinel for infinity", report.Summary.AvgBatteryDays)
	}
	if len(report.Snapshots) != 2 {
		t.Errorf("report has %d snapshots, want 2", len(report.Snapshots))
	}
}

func TestSaveCSVWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	if err := SaveCSV(path, sampleSnapshots()); err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	got, err := ReadSnapshotsCSV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadSnapshotsCSV() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("saved file has %d rows, want 2", len(got))
	}
}

package metrics

import "math"

// Summary holds final statistics for a completed run, derived from its
// snapshot sequence. Used for experiment comparison rows.
type Summary struct {
	Scenario       string  `json:"scenario"`
	DeliveryRatio  float64 `json:"delivery_ratio"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	Duplicates     int     `json:"duplicates"`
	EnergyMJ       float64 `json:"energy_mj"`
	AvgBatteryDays float64 `json:"avg_battery_days"`
	SendEvents     int     `json:"send_events"`
	DeliveryEvents int     `json:"delivery_events"`
	QueueDrops     int     `json:"queue_drops"`
}

// Summarize computes summary statistics from a snapshot sequence. The
// battery average skips clients with an infinite estimate; if every client
// is infinite the average itself is +Inf.
func Summarize(snapshots []Snapshot, scenario string) Summary {
	if len(snapshots) == 0 {
		return Summary{Scenario: scenario}
	}
	final := snapshots[len(snapshots)-1]

	var batterySum float64
	var batteryN int
	for _, days := range final.BatteryEstimateDays {
		if math.IsInf(days, 1) {
			continue
		}
		batterySum += days
		batteryN++
	}
	avgBattery := math.Inf(1)
	if batteryN > 0 {
		avgBattery = batterySum / float64(batteryN)
	}

	return Summary{
		Scenario:       scenario,
		DeliveryRatio:  final.DeliveryRatio,
		AvgLatencyMS:   final.AvgLatencyMS,
		Duplicates:     final.Duplicates,
		EnergyMJ:       final.EnergyMJ,
		AvgBatteryDays: avgBattery,
		SendEvents:     final.SendEvents,
		DeliveryEvents: final.DeliveryEvents,
		QueueDrops:     final.QueueDrops,
	}
}

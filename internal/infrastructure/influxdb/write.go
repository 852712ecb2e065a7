package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// WriteSnapshot writes one run snapshot's headline metrics.
//
// The write is non-blocking; data is batched and sent asynchronously. The
// point carries wall-clock time; the simulated timestamp travels as a
// field so dashboards can plot either axis.
//
// Parameters:
//   - runID: The run this snapshot belongs to
//   - snap: The snapshot to record
func (c *Client) WriteSnapshot(runID string, snap metrics.Snapshot) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"run_metrics",
		map[string]string{
			"run_id": runID,
		},
		map[string]interface{}{
			"sim_time_s":      snap.Timestamp,
			"delivery_ratio":  snap.DeliveryRatio,
			"avg_latency_ms":  snap.AvgLatencyMS,
			"duplicates":      snap.Duplicates,
			"energy_mj":       snap.EnergyMJ,
			"queue_depth":     snap.QueueDepth,
			"queue_drops":     snap.QueueDrops,
			"send_events":     snap.SendEvents,
			"delivery_events": snap.DeliveryEvents,
			"sleep_ratio_avg": snap.SleepRatioAvg,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteClientEnergy writes one client's cumulative energy consumption.
//
// Parameters:
//   - runID: The run this sample belongs to
//   - clientID: Client identifier
//   - energyMJ: Cumulative energy consumption in millijoules
func (c *Client) WriteClientEnergy(runID, clientID string, energyMJ float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"client_energy",
		map[string]string{
			"run_id":    runID,
			"client_id": clientID,
		},
		map[string]interface{}{
			"energy_mj": energyMJ,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "sim-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

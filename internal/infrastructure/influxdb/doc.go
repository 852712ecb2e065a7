// Package influxdb streams run snapshots into InfluxDB for live dashboards.
//
// It wraps the official influxdb-client-go v2 library with the simulator's
// patterns for connection management, batched writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Per-snapshot headline metrics (delivery ratio, latency, queue depth)
//   - Per-client energy consumption
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "iotsim",
//	    Bucket: "runs",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSnapshot(runID, snap)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps snapshot streaming off the simulation's critical path.
package influxdb

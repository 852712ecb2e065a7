// Package mirror streams simulation output to a real MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing run snapshots and summaries as JSON
//   - Last Will and Testament (LWT) for offline detection
//   - An inbound control topic for remote failover injection
//   - Connection health monitoring
//
// # Architecture
//
// The simulator models its own broker in-process; this package is the
// bridge to a real one, so live dashboards (Grafana via Telegraf, Node-RED,
// plain mosquitto_sub) can watch a run as it happens.
//
//	Simulator → MQTT Broker → Dashboards
//
// # Topic Layout
//
//	iotsim/run/{run_id}/snapshot   per-snapshot metrics (JSON)
//	iotsim/run/{run_id}/summary    final run summary (JSON, retained)
//	iotsim/run/{run_id}/status     run lifecycle (retained)
//	iotsim/system/status           simulator online/offline (retained, LWT)
//	iotsim/control/failover        inbound failover requests
//
// # Usage
//
//	client, err := mirror.Connect(cfg.Mirror)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.PublishSnapshot(runID, snap)
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff per config (initial_delay..max_delay)
package mirror

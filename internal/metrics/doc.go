// Package metrics converts raw simulation events into periodic snapshots.
//
// The Collector is fed by the broker engine and client processes (sends,
// deliveries, duplicates, queue drops, energy, radio state seconds) and by
// the mobility layer (positions). At every stats tick the engine calls
// Snapshot, which materializes a self-contained MetricSnapshot and appends
// it to the run's ordered snapshot sequence.
//
// Simulated-network failures are the primary subject matter here, not
// errors: WAN loss, queue overflow, keep-alive timeouts, and retry
// exhaustion all surface as counters that degrade the delivery ratio.
//
// The Collector owns derived statistics only; it never mutates simulation
// state, and it is only written from the single simulation goroutine.
package metrics

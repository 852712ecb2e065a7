// Package sim assembles and runs one complete simulation: scheduler, PHY
// model, mobility, broker, client nodes, and the metrics collector, all
// built from a Scenario.
//
// The Engine owns the single simulation goroutine; everything inside a run
// executes there, in deterministic event order for a given seed. The
// Controller wraps an Engine with a thread-safe lifecycle (start, stop,
// status, failover injection) for the CLI and the HTTP API.
package sim

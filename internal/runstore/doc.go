// Package runstore persists runs and their snapshot sequences to SQLite.
//
// One row per run carries identity and final summary figures; one row per
// snapshot carries the headline metrics as queryable columns plus the full
// snapshot detail as JSON. The store is what the history API and the runs
// CLI read from after a simulation ends.
package runstore

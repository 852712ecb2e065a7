// Package export writes run results to CSV and JSON for offline analysis.
//
// The CSV form is a flat per-snapshot table of the headline metrics,
// loadable straight into a spreadsheet or pandas. The JSON form carries the
// full snapshot detail including per-client maps. Numbers round-trip
// exactly: ReadSnapshotsCSV(WriteSnapshotsCSV(x)) == x for the columns the
// CSV carries.
package export

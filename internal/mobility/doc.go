// Package mobility advances client positions over simulated time.
//
// Three movement patterns are supported:
//
//   - stationary: the position never changes, but the process still wakes
//     on a small fixed interval so position consumers get a heartbeat;
//   - grid: one axis-aligned unit step of `speed` meters per wake, clamped
//     to the area bounds;
//   - random waypoint: pick a uniform random destination, interpolate
//     across one-second sub-steps so consumers see smooth intermediate
//     positions, then dwell for a bounded random pause.
//
// Positions are only ever advanced by the scheduler's single logical thread
// of control, so the position map needs no locking.
package mobility

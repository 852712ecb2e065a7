// Package sched implements the discrete-event scheduler that every other
// simulation component runs on.
//
// The scheduler owns the simulated clock and a priority queue of pending
// callbacks keyed by (time, sequence). Ties on time dispatch in registration
// order, so a run is fully deterministic for a fixed RNG seed. There is
// exactly one logical thread of control: callbacks never run concurrently,
// and components therefore need no locking as long as they only mutate
// state from scheduled callbacks.
//
// Long-running processes are expressed as callbacks that reschedule
// themselves. Cancellation is cooperative: Stop() raises a flag that every
// process is expected to check at each suspension point; the scheduler never
// preempts a callback.
//
// A panic inside a callback is confined to that callback: it is recovered,
// counted, and reported through the optional logger so one faulty component
// cannot halt the run for all others.
package sched

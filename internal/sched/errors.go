package sched

import "errors"

// Domain errors for the scheduler.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidDuration is returned when scheduling with a negative delay.
	ErrInvalidDuration = errors.New("sched: duration must be non-negative")

	// ErrInvalidInterval is returned when a periodic interval is not positive.
	ErrInvalidInterval = errors.New("sched: interval must be positive")
)

package sim

import "errors"

var (
	// ErrNoDevices indicates a scenario without any client devices.
	ErrNoDevices = errors.New("sim: scenario has no devices")

	// ErrInvalidDuration indicates a non-positive run duration.
	ErrInvalidDuration = errors.New("sim: run duration must be positive")

	// ErrAlreadyRunning indicates a start request while a run is active.
	ErrAlreadyRunning = errors.New("sim: a run is already active")

	// ErrNotRunning indicates a request that needs an active run.
	ErrNotRunning = errors.New("sim: no run is active")
)

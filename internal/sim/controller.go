package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iotsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// Status represents the current state of the controller's run slot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Controller manages the lifecycle of one run at a time on a dedicated
// goroutine. All methods are safe for concurrent use; this is the seam
// between the single-threaded simulation and the CLI/API world.
type Controller struct {
	logger *logging.Logger

	mu         sync.RWMutex
	engine     *Engine
	status     Status
	runID      string
	scenario   string
	startTime  time.Time
	lastResult *Result
	lastError  error

	// done is closed when the active run's goroutine exits.
	done chan struct{}

	// OnStart is invoked once when a run launches, before its first event.
	// It runs on the caller's goroutine with the controller lock held, so
	// it must not call back into the Controller.
	// OnSnapshot is invoked for every snapshot of the active run, on the
	// simulation goroutine. OnComplete is invoked when a run finishes.
	// All must be set before Start.
	OnStart    func(runID string, scenario Scenario)
	OnSnapshot func(runID string, snap metrics.Snapshot)
	OnComplete func(runID string, result Result, err error)
}

// NewController creates an idle controller.
func NewController(logger *logging.Logger) *Controller {
	return &Controller{
		logger: logger,
		status: StatusIdle,
	}
}

// Start builds the scenario and launches it on a new goroutine, returning
// the fresh run id. Returns ErrAlreadyRunning while a run is active.
func (c *Controller) Start(scenario Scenario) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusRunning {
		return "", ErrAlreadyRunning
	}

	engine, err := New(scenario, c.logger)
	if err != nil {
		c.status = StatusFailed
		c.lastError = err
		return "", err
	}

	runID := uuid.NewString()
	if c.OnSnapshot != nil {
		engine.OnSnapshot(func(snap metrics.Snapshot) {
			c.OnSnapshot(runID, snap)
		})
	}

	c.engine = engine
	c.status = StatusRunning
	c.runID = runID
	c.scenario = scenario.Name
	c.startTime = time.Now()
	c.lastResult = nil
	c.lastError = nil
	c.done = make(chan struct{})

	if c.OnStart != nil {
		c.OnStart(runID, scenario)
	}

	go c.monitor(engine, runID)

	return runID, nil
}

// monitor drives one run to completion and records its outcome.
func (c *Controller) monitor(engine *Engine, runID string) {
	result, err := engine.Run()

	c.mu.Lock()
	c.engine = nil
	c.lastResult = &result
	c.lastError = err
	if err != nil {
		c.status = StatusFailed
	} else {
		c.status = StatusCompleted
	}
	done := c.done
	onComplete := c.OnComplete
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("run failed", "run_id", runID, "error", err)
	}
	if onComplete != nil {
		onComplete(runID, result, err)
	}
	close(done)
}

// Stop halts the active run and waits for its goroutine to exit. Returns
// ErrNotRunning when nothing is active.
func (c *Controller) Stop() error {
	c.mu.RLock()
	engine := c.engine
	done := c.done
	c.mu.RUnlock()

	if engine == nil {
		return ErrNotRunning
	}

	c.logger.Info("stopping run", "run_id", c.RunID())
	engine.Stop()
	<-done
	return nil
}

// TriggerFailover injects a broker outage into the active run.
func (c *Controller) TriggerFailover(downS float64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.engine == nil {
		return ErrNotRunning
	}
	c.engine.RequestFailover(downS)
	return nil
}

// Status returns the controller's current state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsRunning reports whether a run is active.
func (c *Controller) IsRunning() bool {
	return c.Status() == StatusRunning
}

// RunID returns the id of the active or most recent run.
func (c *Controller) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// LastResult returns the most recent completed run's result, or nil.
func (c *Controller) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastResult
}

// LastError returns the most recent run failure, or nil.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Wait blocks until the active run finishes. Returns immediately when
// nothing is active.
func (c *Controller) Wait() {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()

	if done != nil {
		<-done
	}
}

// Stats is a point-in-time view of the controller for the status API.
type Stats struct {
	Status    Status        `json:"status"`
	RunID     string        `json:"run_id,omitempty"`
	Scenario  string        `json:"scenario,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the run slot.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Status:   c.status,
		RunID:    c.runID,
		Scenario: c.scenario,
	}
	if c.status == StatusRunning {
		stats.Uptime = time.Since(c.startTime)
	}
	if c.lastError != nil {
		stats.LastError = c.lastError.Error()
	}
	return stats
}

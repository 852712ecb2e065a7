package sim

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/nerrad567/iotsim-core/internal/broker"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/iotsim-core/internal/metrics"
	"github.com/nerrad567/iotsim-core/internal/mobility"
	"github.com/nerrad567/iotsim-core/internal/node"
	"github.com/nerrad567/iotsim-core/internal/phy"
	"github.com/nerrad567/iotsim-core/internal/sched"
)

// Engine defaults for scenario fields left zero by direct construction.
const (
	defaultTickIntervalS     = 1.0
	defaultSnapshotIntervalS = 10.0
	defaultDutyCycleWindowS  = 3600.0
	defaultAreaM             = 100.0

	// startStaggerMaxS spreads node start times so co-configured devices
	// don't publish in lockstep.
	startStaggerMaxS = 1.0
)

// Result is the outcome of a completed (or stopped) run.
type Result struct {
	Snapshots []metrics.Snapshot
	Summary   metrics.Summary
	Stopped   bool
}

// Engine builds a scenario's component graph and drives it to completion.
// Run executes on a single goroutine; the only methods safe to call from
// outside it are Stop and RequestFailover.
type Engine struct {
	scenario  Scenario
	logger    *logging.Logger
	sched     *sched.Scheduler
	collector *metrics.Collector
	phy       *phy.Model
	broker    *broker.Engine
	mobility  *mobility.Manager
	nodes     []*node.Node
	deviceIDs map[string]bool

	onSnapshot func(metrics.Snapshot)

	// failoverReq carries an externally requested outage duration (as
	// float64 bits) into the tick callback.
	failoverReq atomic.Uint64
}

// New wires up every component of a scenario. The scheduler RNG is the sole
// source of randomness, so equal seeds replay identically.
func New(scenario Scenario, logger *logging.Logger) (*Engine, error) {
	if len(scenario.Devices) == 0 {
		return nil, ErrNoDevices
	}
	if scenario.DurationS <= 0 {
		return nil, ErrInvalidDuration
	}
	if scenario.TickIntervalS <= 0 {
		scenario.TickIntervalS = defaultTickIntervalS
	}
	if scenario.SnapshotIntervalS <= 0 {
		scenario.SnapshotIntervalS = defaultSnapshotIntervalS
	}
	if scenario.DutyCycleWindowS <= 0 {
		scenario.DutyCycleWindowS = defaultDutyCycleWindowS
	}
	if scenario.AreaX <= 0 {
		scenario.AreaX = defaultAreaM
	}
	if scenario.AreaY <= 0 {
		scenario.AreaY = defaultAreaM
	}

	e := &Engine{
		scenario:  scenario,
		logger:    logger,
		sched:     sched.New(scenario.Seed),
		collector: metrics.NewCollector(),
		deviceIDs: make(map[string]bool, len(scenario.Devices)),
	}
	e.sched.SetLogger(logger)
	e.phy = phy.NewModel(e.sched, e.sched.Rand(), scenario.DutyCycleWindowS)
	e.broker = broker.NewEngine(e.sched, e.collector, scenario.Broker)

	for _, gw := range scenario.Gateways {
		e.broker.SetGatewayLink(gw.ID, gw.Link)
	}

	// Seeded initial placement: configured positions are honored, the rest
	// are drawn uniformly inside the area. Moving gateways join the
	// mobility manager under their own id.
	initial := make(map[string]mobility.Position, len(scenario.Devices))
	profiles := make(map[string]mobility.Profile, len(scenario.Devices))
	for _, dev := range scenario.Devices {
		e.deviceIDs[dev.Node.ID] = true
		pos := mobility.Position{
			X: e.sched.Rand().Float64() * scenario.AreaX,
			Y: e.sched.Rand().Float64() * scenario.AreaY,
		}
		if dev.Position != nil {
			pos = *dev.Position
		}
		initial[dev.Node.ID] = pos
		profiles[dev.Node.ID] = dev.Mobility
	}
	for _, gw := range scenario.Gateways {
		if gw.Mobility == nil {
			continue
		}
		initial[gw.ID] = mobility.Position{X: gw.X, Y: gw.Y}
		profiles[gw.ID] = *gw.Mobility
	}
	e.mobility = mobility.NewManager(e.sched, scenario.AreaX, scenario.AreaY, initial, profiles)

	deps := node.Deps{
		Sched:           e.sched,
		PHY:             e.phy,
		Broker:          e.broker,
		Metrics:         e.collector,
		Mobility:        e.mobility,
		GatewayPosition: e.gatewayPosition,
	}
	for _, dev := range scenario.Devices {
		cfg := dev.Node
		if cfg.StartDelayS <= 0 {
			cfg.StartDelayS = e.sched.Rand().Float64() * startStaggerMaxS
		}
		n, err := node.New(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("sim: building %s: %w", dev.Node.ID, err)
		}
		e.nodes = append(e.nodes, n)
	}

	return e, nil
}

// Run executes the scenario to its configured duration and returns the
// collected results. Blocking; call Stop from another goroutine to end the
// run early.
func (e *Engine) Run() (Result, error) {
	e.logger.Info("run started",
		"scenario", e.scenario.Name,
		"seed", e.scenario.Seed,
		"devices", len(e.nodes),
		"gateways", len(e.scenario.Gateways),
		"duration_s", e.scenario.DurationS,
	)

	if err := e.mobility.Start(); err != nil {
		return Result{}, fmt.Errorf("sim: %w", err)
	}
	for _, n := range e.nodes {
		if err := n.Start(); err != nil {
			return Result{}, fmt.Errorf("sim: %w", err)
		}
	}

	_ = e.sched.SchedulePeriodic(e.scenario.TickIntervalS, e.scenario.TickIntervalS, e.tick)
	_ = e.sched.SchedulePeriodic(e.scenario.SnapshotIntervalS, e.scenario.SnapshotIntervalS, func() bool {
		e.captureSnapshot()
		return true
	})

	if f := e.scenario.Failover; f != nil {
		_ = e.sched.ScheduleAt(f.AtS, func() {
			e.logger.Warn("scheduled broker failover",
				"at_s", f.AtS,
				"down_s", f.DownS,
			)
			e.broker.TriggerFailover(f.DownS)
		})
	}

	e.sched.RunUntil(e.scenario.DurationS)

	// Final rollup when the run didn't end exactly on a snapshot boundary.
	snaps := e.collector.Snapshots()
	if len(snaps) == 0 || snaps[len(snaps)-1].Timestamp < e.sched.Now() {
		e.captureSnapshot()
	}

	summary := metrics.Summarize(e.collector.Snapshots(), e.scenario.Name)
	e.logger.Info("run complete",
		"scenario", e.scenario.Name,
		"delivery_ratio", summary.DeliveryRatio,
		"avg_latency_ms", summary.AvgLatencyMS,
		"duplicates", summary.Duplicates,
		"queue_drops", summary.QueueDrops,
		"stopped", e.sched.Stopped(),
	)

	return Result{
		Snapshots: e.collector.Snapshots(),
		Summary:   summary,
		Stopped:   e.sched.Stopped(),
	}, nil
}

// Stop ends the run at the next event boundary. Safe from any goroutine.
func (e *Engine) Stop() { e.sched.Stop() }

// RequestFailover asks the running simulation to take the broker down for
// downS simulated seconds. Safe from any goroutine; applied on the next
// tick. Requests made while one is pending replace it.
func (e *Engine) RequestFailover(downS float64) {
	e.failoverReq.Store(math.Float64bits(downS))
}

// tick is the per-interval broker maintenance pass.
func (e *Engine) tick() bool {
	if bits := e.failoverReq.Swap(0); bits != 0 {
		downS := math.Float64frombits(bits)
		e.logger.Warn("failover requested", "down_s", downS)
		e.broker.TriggerFailover(downS)
	}
	e.broker.ProcessQueue()
	e.broker.CheckKeepAlive()
	return true
}

// captureSnapshot refreshes positions and gateway placements on the
// collector and materializes one rollup.
func (e *Engine) captureSnapshot() {
	positions := make(map[string]metrics.Position, len(e.deviceIDs))
	for id, pos := range e.mobility.Positions() {
		if !e.deviceIDs[id] {
			continue
		}
		positions[id] = metrics.Position{X: pos.X, Y: pos.Y}
	}
	e.collector.UpdatePositions(positions)

	gateways := make(map[string]metrics.GatewayInfo, len(e.scenario.Gateways))
	for _, gw := range e.scenario.Gateways {
		x, y := gw.X, gw.Y
		if pos, ok := e.mobility.Position(gw.ID); ok {
			x, y = pos.X, pos.Y
		}
		gateways[gw.ID] = metrics.GatewayInfo{
			Position: metrics.Position{X: x, Y: y},
			RangeM:   gw.RangeM,
		}
	}
	e.collector.UpdateGateways(gateways)

	snap := e.collector.Snapshot(e.sched.Now())
	e.logger.Debug("snapshot",
		"t", snap.Timestamp,
		"delivery_ratio", snap.DeliveryRatio,
		"queue_depth", snap.QueueDepth,
	)
	if e.onSnapshot != nil {
		e.onSnapshot(snap)
	}
}

// OnSnapshot registers a sink invoked for every captured snapshot, on the
// simulation goroutine. Must be set before Run.
func (e *Engine) OnSnapshot(fn func(metrics.Snapshot)) {
	e.onSnapshot = fn
}

// gatewayPosition resolves a gateway's current coordinates: the mobility
// manager for moving gateways, the static placement otherwise.
func (e *Engine) gatewayPosition(gatewayID string) (mobility.Position, bool) {
	if pos, ok := e.mobility.Position(gatewayID); ok {
		return pos, true
	}
	for _, gw := range e.scenario.Gateways {
		if gw.ID == gatewayID {
			return mobility.Position{X: gw.X, Y: gw.Y}, true
		}
	}
	return mobility.Position{}, false
}

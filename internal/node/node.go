package node

import (
	"fmt"
	"math"

	"github.com/nerrad567/iotsim-core/internal/broker"
	"github.com/nerrad567/iotsim-core/internal/metrics"
	"github.com/nerrad567/iotsim-core/internal/mobility"
	"github.com/nerrad567/iotsim-core/internal/phy"
	"github.com/nerrad567/iotsim-core/internal/sched"
)

const (
	// connectBackoffMinS and connectBackoffMaxS bound the node-side scan
	// backoff while the gateway is out of radio range.
	connectBackoffMinS = 1.0
	connectBackoffMaxS = 60.0

	// scanJitterMaxS is the uniform jitter added to each scan retry so
	// co-located nodes don't reconnect in lockstep.
	scanJitterMaxS = 1.0

	bitsPerByte = 8
	msPerSecond = 1000.0
)

// Subscription is one topic filter a node registers after connecting.
type Subscription struct {
	Filter string
	QoS    int
}

// Config describes one simulated device.
type Config struct {
	ID    string
	Radio phy.Radio

	// Topic, QoS, PayloadBytes, and Retain shape the node's publishes.
	Topic        string
	QoS          int
	PayloadBytes int
	Retain       bool

	// PublishIntervalS is the seconds between publish attempts.
	PublishIntervalS float64

	// StartDelayS delays the initial connect; the run engine staggers nodes
	// so they don't all wake on the same tick.
	StartDelayS float64

	CleanSession  bool
	KeepAliveS    float64
	Will          *broker.Will
	Subscriptions []Subscription

	// GatewayID binds the node to a gateway for range checks and WAN link
	// selection. Empty means a direct broker connection, always reachable.
	GatewayID string

	// DutyCycleOverride replaces the radio profile's duty-cycle limit when
	// positive.
	DutyCycleOverride float64

	// BatteryCapacityMJ is the energy budget in millijoules. Zero means
	// mains-powered: the node never dies.
	BatteryCapacityMJ float64
}

// Deps wires a node to the shared simulation machinery.
type Deps struct {
	Sched    *sched.Scheduler
	PHY      *phy.Model
	Broker   *broker.Engine
	Metrics  *metrics.Collector
	Mobility *mobility.Manager

	// GatewayPosition resolves a gateway's current coordinates. Nil disables
	// range checks.
	GatewayPosition func(gatewayID string) (mobility.Position, bool)
}

// Node is one simulated client device. All methods run on the simulation
// goroutine.
type Node struct {
	cfg     Config
	deps    Deps
	profile phy.Profile
	payload []byte

	consumedMJ float64
	backoffS   float64
	dead       bool
}

// New validates the config and builds a node. The battery capacity is
// registered with the collector up front so estimates cover idle nodes too.
func New(cfg Config, deps Deps) (*Node, error) {
	if cfg.ID == "" {
		return nil, ErrMissingID
	}
	if cfg.PublishIntervalS <= 0 {
		return nil, ErrInvalidInterval
	}
	if cfg.PayloadBytes <= 0 {
		return nil, ErrInvalidPayload
	}
	profile, err := phy.ProfileFor(cfg.Radio)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", cfg.ID, err)
	}
	if cfg.KeepAliveS <= 0 {
		cfg.KeepAliveS = math.Max(30.0, 2*cfg.PublishIntervalS)
	}

	n := &Node{
		cfg:     cfg,
		deps:    deps,
		profile: profile,
		payload: make([]byte, cfg.PayloadBytes),
	}
	if cfg.BatteryCapacityMJ > 0 {
		deps.Metrics.SetBatteryCapacity(cfg.ID, cfg.BatteryCapacityMJ)
	}
	return n, nil
}

// Start schedules the node's first connect attempt.
func (n *Node) Start() error {
	delay := math.Max(0, n.cfg.StartDelayS)
	if err := n.deps.Sched.ScheduleAfter(delay, n.attemptConnect); err != nil {
		return fmt.Errorf("node %s: %w", n.cfg.ID, err)
	}
	return nil
}

// Dead reports whether the battery has drained.
func (n *Node) Dead() bool { return n.dead }

// ConsumedMJ returns the cumulative energy drawn so far.
func (n *Node) ConsumedMJ() float64 { return n.consumedMJ }

// attemptConnect connects to the broker when the gateway is in range,
// otherwise stays in scanning with exponential backoff. Backoff resets on
// success.
func (n *Node) attemptConnect() {
	if n.deps.Sched.Stopped() || n.dead {
		return
	}

	if !n.inRange() {
		n.deps.Metrics.UpdateClientState(n.cfg.ID, metrics.StateScanning)
		n.scheduleRetry()
		return
	}

	n.backoffS = 0
	n.deps.Broker.Connect(n.cfg.ID, n.cfg.CleanSession, n.cfg.KeepAliveS, n.cfg.Will)
	for _, sub := range n.cfg.Subscriptions {
		n.deps.Broker.Subscribe(n.cfg.ID, sub.Filter, sub.QoS)
	}

	_ = n.deps.Sched.ScheduleAfter(n.cfg.PublishIntervalS, n.publishTick)
}

// publishTick runs one publish cycle and reschedules itself. A duty-cycle
// rejection or an out-of-range gateway skips the cycle; only battery death
// ends the loop.
func (n *Node) publishTick() {
	if n.deps.Sched.Stopped() || n.dead {
		return
	}

	if !n.inRange() {
		n.deps.Metrics.UpdateClientState(n.cfg.ID, metrics.StateScanning)
		n.reschedule()
		return
	}

	session := n.deps.Broker.Session(n.cfg.ID)
	if session == nil || !session.Connected {
		// Broker-side disconnect (keep-alive or failover); the engine owns
		// the reconnect, the node just waits out the cycle.
		n.reschedule()
		return
	}

	res, err := n.deps.PHY.Transmit(n.cfg.ID, n.cfg.Radio, n.cfg.PayloadBytes*bitsPerByte, n.cfg.DutyCycleOverride)
	if err != nil || !res.Success {
		n.reschedule()
		return
	}

	n.consumedMJ += res.EnergyMJ
	n.deps.Metrics.RecordRadioTx(n.cfg.ID, res.DurationS)

	n.deps.Broker.Publish(n.cfg.ID, &broker.Message{
		Topic:   n.cfg.Topic,
		Payload: n.payload,
		QoS:     n.cfg.QoS,
		Retain:  n.cfg.Retain,
	}, n.cfg.GatewayID)

	// The radio sleeps for the rest of the interval.
	if sleepS := n.cfg.PublishIntervalS - res.LatencyMS/msPerSecond; sleepS > 0 {
		n.consumedMJ += sleepS * n.profile.SleepPowerMW / msPerSecond
		n.deps.Metrics.RecordRadioSleep(n.cfg.ID, sleepS)
	}
	n.deps.Metrics.RecordEnergy(n.cfg.ID, n.consumedMJ)

	if n.cfg.BatteryCapacityMJ > 0 && n.consumedMJ >= n.cfg.BatteryCapacityMJ {
		n.die()
		return
	}
	n.reschedule()
}

// die marks the node dead and disconnects it, which fires any last-will.
func (n *Node) die() {
	n.dead = true
	n.deps.Broker.Disconnect(n.cfg.ID)
	n.deps.Metrics.UpdateClientState(n.cfg.ID, metrics.StateDead)
}

// inRange reports whether the node can reach its gateway. Nodes without a
// gateway binding, a position, or a locator are always reachable.
func (n *Node) inRange() bool {
	if n.cfg.GatewayID == "" || n.deps.GatewayPosition == nil {
		return true
	}
	if n.deps.Mobility == nil {
		return true
	}
	gw, ok := n.deps.GatewayPosition(n.cfg.GatewayID)
	if !ok {
		return true
	}
	pos, ok := n.deps.Mobility.Position(n.cfg.ID)
	if !ok {
		return true
	}
	return math.Hypot(pos.X-gw.X, pos.Y-gw.Y) <= n.profile.RangeM
}

// scheduleRetry doubles the scan backoff (capped) and queues the next
// connect attempt with a little jitter.
func (n *Node) scheduleRetry() {
	if n.backoffS <= 0 {
		n.backoffS = connectBackoffMinS
	} else {
		n.backoffS = math.Min(n.backoffS*2, connectBackoffMaxS)
	}
	delay := n.backoffS + n.deps.Sched.Rand().Float64()*scanJitterMaxS
	_ = n.deps.Sched.ScheduleAfter(delay, n.attemptConnect)
}

func (n *Node) reschedule() {
	_ = n.deps.Sched.ScheduleAfter(n.cfg.PublishIntervalS, n.publishTick)
}

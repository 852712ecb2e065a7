package metrics

import "math"

// ClientState labels a client's connection lifecycle for reporting.
type ClientState string

const (
	StateConnected    ClientState = "connected"
	StateDisconnected ClientState = "disconnected"
	StateReconnecting ClientState = "reconnecting"
	StateScanning     ClientState = "scanning"
	StateDead         ClientState = "dead"
)

const secondsPerDay = 86400.0

// Position mirrors a client's coordinates at snapshot time.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GatewayInfo mirrors a gateway's placement and coverage at snapshot time.
type GatewayInfo struct {
	Position Position `json:"position"`
	RangeM   float64  `json:"range_m"`
}

// Snapshot is a self-contained point-in-time rollup of one run.
type Snapshot struct {
	Timestamp      float64 `json:"timestamp"`
	DeliveryRatio  float64 `json:"delivery_ratio"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	Duplicates     int     `json:"duplicates"`
	EnergyMJ       float64 `json:"energy_mj"`
	QueueDepth     int     `json:"queue_depth"`
	QueueDrops     int     `json:"queue_drops"`
	SendEvents     int     `json:"send_events"`
	DeliveryEvents int     `json:"delivery_events"`
	SleepRatioAvg  float64 `json:"sleep_ratio_avg"`

	TopicRates          map[string]float64     `json:"topic_rates,omitempty"`
	ClientStates        map[string]ClientState `json:"client_states,omitempty"`
	EnergyPerClient     map[string]float64     `json:"energy_per_client,omitempty"`
	Positions           map[string]Position    `json:"positions,omitempty"`
	BatteryEstimateDays map[string]float64     `json:"-"`
	Gateways            map[string]GatewayInfo `json:"gateways,omitempty"`
}

// Collector accumulates raw events during a run and materializes snapshots.
type Collector struct {
	sendEvents      int
	deliveryEvents  int
	duplicateEvents int
	totalLatencyMS  float64
	latencySamples  int
	queueDepth      int
	queueDrops      int

	energyMJ        map[string]float64
	batteryCapacity map[string]float64
	radioTxS        map[string]float64
	radioRxS        map[string]float64
	radioSleepS     map[string]float64
	topicCounts     map[string]int
	clientStates    map[string]ClientState
	positions       map[string]Position
	gateways        map[string]GatewayInfo

	lastSnapshotAt float64
	snapshots      []Snapshot
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		energyMJ:        make(map[string]float64),
		batteryCapacity: make(map[string]float64),
		radioTxS:        make(map[string]float64),
		radioRxS:        make(map[string]float64),
		radioSleepS:     make(map[string]float64),
		topicCounts:     make(map[string]int),
		clientStates:    make(map[string]ClientState),
		positions:       make(map[string]Position),
		gateways:        make(map[string]GatewayInfo),
	}
}

// RecordSend counts a transmit attempt from any client.
func (c *Collector) RecordSend() { c.sendEvents++ }

// RecordDelivery counts an end-to-end delivery and its latency.
func (c *Collector) RecordDelivery(latencyMS float64) {
	c.deliveryEvents++
	c.totalLatencyMS += latencyMS
	c.latencySamples++
}

// RecordDuplicate counts a duplicate delivery (QoS1 retransmit or spurious).
func (c *Collector) RecordDuplicate() { c.duplicateEvents++ }

// RecordQueueDrop counts a message dropped by broker queue backpressure.
func (c *Collector) RecordQueueDrop() { c.queueDrops++ }

// SetQueueDepth exposes the instantaneous broker queue depth.
func (c *Collector) SetQueueDepth(depth int) { c.queueDepth = depth }

// RecordEnergy stores a client's cumulative energy consumption in mJ.
func (c *Collector) RecordEnergy(clientID string, totalMJ float64) {
	c.energyMJ[clientID] = totalMJ
}

// SetBatteryCapacity registers a client's battery capacity in mJ.
func (c *Collector) SetBatteryCapacity(clientID string, capacityMJ float64) {
	c.batteryCapacity[clientID] = capacityMJ
}

// RecordRadioTx adds transmit-state seconds to a client's radio ledger.
func (c *Collector) RecordRadioTx(clientID string, seconds float64) {
	c.radioTxS[clientID] += math.Max(0, seconds)
}

// RecordRadioRx adds receive-state seconds to a client's radio ledger.
func (c *Collector) RecordRadioRx(clientID string, seconds float64) {
	c.radioRxS[clientID] += math.Max(0, seconds)
}

// RecordRadioSleep adds sleep-state seconds to a client's radio ledger.
func (c *Collector) RecordRadioSleep(clientID string, seconds float64) {
	c.radioSleepS[clientID] += math.Max(0, seconds)
}

// RecordTopic tallies one message on a topic for rate computation.
func (c *Collector) RecordTopic(topic string) { c.topicCounts[topic]++ }

// UpdateClientState stores a client's latest connection state.
func (c *Collector) UpdateClientState(clientID string, state ClientState) {
	c.clientStates[clientID] = state
}

// ClientStateFor returns the last recorded state for a client.
func (c *Collector) ClientStateFor(clientID string) ClientState {
	return c.clientStates[clientID]
}

// UpdatePositions replaces the latest mobility coordinates.
func (c *Collector) UpdatePositions(positions map[string]Position) {
	c.positions = make(map[string]Position, len(positions))
	for id, p := range positions {
		c.positions[id] = p
	}
}

// UpdateGateways replaces the latest gateway placement map.
func (c *Collector) UpdateGateways(gateways map[string]GatewayInfo) {
	c.gateways = make(map[string]GatewayInfo, len(gateways))
	for id, g := range gateways {
		c.gateways[id] = g
	}
}

// QueueDrops returns the cumulative queue-drop count.
func (c *Collector) QueueDrops() int { return c.queueDrops }

// Duplicates returns the cumulative duplicate count.
func (c *Collector) Duplicates() int { return c.duplicateEvents }

// Snapshots returns the append-only snapshot sequence captured so far.
func (c *Collector) Snapshots() []Snapshot { return c.snapshots }

// Snapshot materializes a rollup at the given timestamp, appends it to the
// sequence, and resets the per-interval topic counters.
func (c *Collector) Snapshot(timestamp float64) Snapshot {
	deliveryRatio := 0.0
	if c.sendEvents > 0 {
		deliveryRatio = float64(c.deliveryEvents) / float64(c.sendEvents)
	}
	avgLatency := 0.0
	if c.latencySamples > 0 {
		avgLatency = c.totalLatencyMS / float64(c.latencySamples)
	}

	var totalEnergy float64
	energyPerClient := make(map[string]float64, len(c.energyMJ))
	for id, e := range c.energyMJ {
		totalEnergy += e
		energyPerClient[id] = e
	}

	elapsed := timestamp - c.lastSnapshotAt
	if elapsed <= 0 {
		elapsed = 1e-6
	}
	topicRates := make(map[string]float64, len(c.topicCounts))
	for topic, count := range c.topicCounts {
		topicRates[topic] = float64(count) / elapsed
	}

	snap := Snapshot{
		Timestamp:           timestamp,
		DeliveryRatio:       deliveryRatio,
		AvgLatencyMS:        avgLatency,
		Duplicates:          c.duplicateEvents,
		EnergyMJ:            totalEnergy,
		QueueDepth:          c.queueDepth,
		QueueDrops:          c.queueDrops,
		SendEvents:          c.sendEvents,
		DeliveryEvents:      c.deliveryEvents,
		SleepRatioAvg:       c.sleepRatioAvg(),
		TopicRates:          topicRates,
		ClientStates:        copyMap(c.clientStates),
		EnergyPerClient:     energyPerClient,
		Positions:           copyMap(c.positions),
		BatteryEstimateDays: c.batteryEstimates(timestamp),
		Gateways:            copyMap(c.gateways),
	}

	c.snapshots = append(c.snapshots, snap)
	c.topicCounts = make(map[string]int)
	c.lastSnapshotAt = timestamp
	return snap
}

// batteryEstimates projects battery life in days per client:
// capacity / consumption * (elapsed / day). Infinite when nothing was drawn.
func (c *Collector) batteryEstimates(timestamp float64) map[string]float64 {
	out := make(map[string]float64, len(c.batteryCapacity))
	for id, capacity := range c.batteryCapacity {
		consumed := c.energyMJ[id]
		if consumed <= 0 {
			out[id] = math.Inf(1)
			continue
		}
		out[id] = capacity / consumed * (timestamp / secondsPerDay)
	}
	return out
}

// sleepRatioAvg is the mean of sleep/(tx+rx+sleep) over clients with any
// recorded radio time.
func (c *Collector) sleepRatioAvg() float64 {
	ids := make(map[string]struct{})
	for id := range c.radioTxS {
		ids[id] = struct{}{}
	}
	for id := range c.radioRxS {
		ids[id] = struct{}{}
	}
	for id := range c.radioSleepS {
		ids[id] = struct{}{}
	}

	var sum float64
	var n int
	for id := range ids {
		total := c.radioTxS[id] + c.radioRxS[id] + c.radioSleepS[id]
		if total <= 0 {
			continue
		}
		sum += c.radioSleepS[id] / total
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

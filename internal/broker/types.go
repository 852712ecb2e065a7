package broker

// Message is one published application payload traveling through the
// broker. IDs are assigned once by the engine, strictly increasing, and
// never reused within a run. The Dup flag is set only on resends.
type Message struct {
	ID        uint64
	Topic     string
	Payload   []byte
	QoS       int
	Retain    bool
	Dup       bool
	Sender    string
	Timestamp float64
	Retries   int
}

// Will is a last-will registration: published on the client's behalf when
// it disconnects.
type Will struct {
	Topic   string
	Payload []byte
	QoS     int
}

// Link models the WAN path a message takes to the broker: base latency plus
// probabilistic loss. Jitter is added at delivery time.
type Link struct {
	LatencyMS float64
	LossRate  float64
}

// Session is the broker-side state for one client. It persists across
// reconnects iff CleanSession is false.
type Session struct {
	ClientID     string
	CleanSession bool
	Connected    bool
	KeepAlive    float64
	LastSeen     float64

	// Subscriptions maps topic filter to granted QoS.
	Subscriptions map[string]int

	// Inflight holds QoS1 messages awaiting ack, with their retransmit
	// deadlines. Entries leave only on ack or retry-limit exhaustion.
	Inflight     map[uint64]*Message
	RetransmitAt map[uint64]float64

	// Offline holds messages queued for a disconnected persistent session,
	// replayed in publish order on reconnect.
	Offline []*Message

	// NextReconnect is the earliest simulated time a broker-scheduled
	// reconnect attempt may run; zero when none is pending.
	NextReconnect float64

	Will *Will
}

// Config holds broker operating parameters. Zero values are filled with
// defaults by the engine; QueueCapacity must be at least 1 and is validated
// at setup time by the config package.
type Config struct {
	// QueueCapacity bounds the delivery queue. Publishes beyond capacity
	// are counted drops, never blocking the caller.
	QueueCapacity int

	// RetryLimit is the maximum QoS1 retransmissions before a message is
	// silently dropped from inflight bookkeeping.
	RetryLimit int

	// DuplicateProb is the spurious duplicate-delivery probability applied
	// independently per delivery. The engine uses the value as-is; the
	// config layer supplies the 0.02 default, so an explicit zero fully
	// disables spurious duplicates.
	DuplicateProb float64

	// WANLatencyMS, WANJitterMS, and WANLossRate are the default link
	// parameters for traffic not bound to a specific gateway.
	WANLatencyMS float64
	WANJitterMS  float64
	WANLossRate  float64

	// ReconnectBackoffMinS and ReconnectBackoffMaxS bound the exponential
	// backoff for broker-scheduled reconnects after keep-alive timeouts.
	ReconnectBackoffMinS float64
	ReconnectBackoffMaxS float64

	// RetransmitFloorS is the fallback retransmit deadline applied when a
	// message is re-queued after a missed ack.
	RetransmitFloorS float64
}

// Engine defaults, matching the simulated network's long-standing behavior.
// DefaultDuplicateProb is the long-standing spurious duplicate-delivery
// probability; the config layer applies it when no value is configured.
const DefaultDuplicateProb = 0.02

const (
	defaultRetryLimit       = 3
	defaultBackoffMinS      = 0.5
	defaultBackoffMaxS      = 5.0
	defaultRetransmitFloorS = 2.0

	// retainedLatencyMS is the small fixed latency for retained-message and
	// offline-replay deliveries, which skip the WAN queue.
	retainedLatencyMS = 5.0
)

func (c Config) withDefaults() Config {
	if c.RetryLimit <= 0 {
		c.RetryLimit = defaultRetryLimit
	}
	if c.ReconnectBackoffMinS <= 0 {
		c.ReconnectBackoffMinS = defaultBackoffMinS
	}
	if c.ReconnectBackoffMaxS <= 0 {
		c.ReconnectBackoffMaxS = defaultBackoffMaxS
	}
	if c.RetransmitFloorS <= 0 {
		c.RetransmitFloorS = defaultRetransmitFloorS
	}
	return c
}

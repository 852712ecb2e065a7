package phy

import "math/rand"

// MAC timing parameters shared by all clients.
const (
	// bleConnIntervalS approximates the BLE connection-event period.
	bleConnIntervalS = 0.06

	// wifiContentionS and zigbeeContentionS bound the randomized CSMA/CA
	// backoff drawn before each transmission.
	wifiContentionS   = 0.003
	zigbeeContentionS = 0.008

	// ackSuccessProb is the probability a MAC-layer ack arrives without a
	// retry for Wi-Fi and Zigbee.
	ackSuccessProb = 0.98

	bitsPerMbps = 1e6
	msPerSecond = 1000.0
)

// Clock supplies the current simulated time. Satisfied by sched.Scheduler.
type Clock interface {
	Now() float64
}

// Result describes the outcome of one transmission attempt.
type Result struct {
	// Success is false when the duty-cycle gate rejected the transmission.
	// The caller must treat that as a skipped cycle, not an error.
	Success bool

	// LatencyMS is the end-to-end MAC latency: pre-wait, contention,
	// airtime, any retry, plus the profile's fixed latency constant.
	LatencyMS float64

	// EnergyMJ is the transmit energy in millijoules.
	EnergyMJ float64

	// DurationS is the radio occupancy in seconds (contention, airtime,
	// retry; the quantity charged against the duty-cycle budget).
	DurationS float64
}

// Model computes per-transmission timing and energy and gates duty-cycled
// radios. One Model is shared by all clients in a run.
type Model struct {
	clock    Clock
	rng      *rand.Rand
	windowS  float64
	trackers map[string]*DutyCycleTracker
}

// NewModel creates a timing model. windowS is the trailing window used for
// Zigbee duty-cycle accounting.
func NewModel(clock Clock, rng *rand.Rand, windowS float64) *Model {
	return &Model{
		clock:    clock,
		rng:      rng,
		windowS:  windowS,
		trackers: make(map[string]*DutyCycleTracker),
	}
}

// Tracker returns the duty-cycle tracker for a client, if one exists yet.
func (m *Model) Tracker(nodeID string) *DutyCycleTracker {
	return m.trackers[nodeID]
}

// Transmit computes the cost of sending payloadBits over the given radio.
//
// dutyCycleOverride replaces the profile's duty-cycle limit when positive;
// pass 0 to use the profile default.
//
// On success the occupancy interval is recorded against the client's
// duty-cycle ledger. On rejection the result carries zero latency and
// energy and nothing is recorded.
func (m *Model) Transmit(nodeID string, radio Radio, payloadBits int, dutyCycleOverride float64) (Result, error) {
	profile, err := ProfileFor(radio)
	if err != nil {
		return Result{}, err
	}

	airtimeS := float64(payloadBits) / (profile.DataRateMbps * bitsPerMbps)

	// Contention backoff and the single probabilistic MAC retry are drawn
	// up front so the duty-cycle gate sees the full occupancy it would
	// have to admit.
	var contentionS, retryS, preWaitS float64
	switch radio {
	case RadioWiFi:
		contentionS = m.rng.Float64() * wifiContentionS
		if m.rng.Float64() > ackSuccessProb {
			retryS = airtimeS + m.rng.Float64()*wifiContentionS
		}
	case RadioZigbee:
		contentionS = m.rng.Float64() * zigbeeContentionS
		if m.rng.Float64() > ackSuccessProb {
			retryS = airtimeS + m.rng.Float64()*zigbeeContentionS
		}
	case RadioBLE:
		// Align to the next connection-event boundary.
		phase := mod(m.clock.Now(), bleConnIntervalS)
		if phase > 0 {
			preWaitS = bleConnIntervalS - phase
		}
	}

	occupancyS := contentionS + airtimeS + retryS

	if profile.dutyCycled() {
		limit := profile.DutyCycleLimit
		if dutyCycleOverride > 0 {
			limit = dutyCycleOverride
		}
		tracker, ok := m.trackers[nodeID]
		if !ok {
			tracker = NewDutyCycleTracker(m.windowS, limit)
			m.trackers[nodeID] = tracker
		}
		if !tracker.CanTransmit(m.clock.Now(), occupancyS) {
			return Result{Success: false}, nil
		}
		start := m.clock.Now() + preWaitS
		tracker.Record(start, start+occupancyS)
	}

	return Result{
		Success:   true,
		LatencyMS: (preWaitS+occupancyS)*msPerSecond + profile.TxLatencyMS,
		EnergyMJ:  airtimeS * profile.TxPowerMW / msPerSecond,
		DurationS: occupancyS,
	}, nil
}

// mod is math.Mod without the negative-result edge; simulation time is
// never negative.
func mod(x, y float64) float64 {
	n := float64(int64(x / y))
	return x - n*y
}

package phy

import "fmt"

// Radio identifies one of the supported radio technologies.
type Radio string

const (
	RadioBLE    Radio = "ble"
	RadioWiFi   Radio = "wifi"
	RadioZigbee Radio = "zigbee"
)

// Profile describes the static characteristics of one radio technology.
// Profiles are immutable and shared by every client of that radio type.
type Profile struct {
	// Name is the human-readable technology name.
	Name string

	// DataRateMbps is the raw link data rate in megabits per second.
	DataRateMbps float64

	// RangeM is the usable radio range in meters. Clients outside this
	// distance from their gateway cannot connect.
	RangeM float64

	// TxPowerMW, RxPowerMW, and SleepPowerMW are power draws in milliwatts
	// for the transmit, receive, and sleep radio states.
	TxPowerMW    float64
	RxPowerMW    float64
	SleepPowerMW float64

	// TxLatencyMS is the fixed propagation/processing latency added to
	// every transmission, in milliseconds.
	TxLatencyMS float64

	// DutyCycleLimit is the maximum fraction of a trailing window the radio
	// may spend transmitting. Zero means unlimited.
	DutyCycleLimit float64
}

// Duty-cycled radios expose a non-zero limit.
func (p Profile) dutyCycled() bool { return p.DutyCycleLimit > 0 }

var profiles = map[Radio]Profile{
	RadioBLE: {
		Name:         "BLE 5.x",
		DataRateMbps: 2.0,
		RangeM:       50.0,
		TxPowerMW:    15.0,
		RxPowerMW:    10.0,
		SleepPowerMW: 0.05,
		TxLatencyMS:  7.5, // connection interval midpoint
	},
	RadioWiFi: {
		Name:         "Wi-Fi 802.11n",
		DataRateMbps: 72.2,
		RangeM:       90.0,
		TxPowerMW:    320.0,
		RxPowerMW:    220.0,
		SleepPowerMW: 2.5,
		TxLatencyMS:  2.0,
	},
	RadioZigbee: {
		Name:           "Zigbee 802.15.4",
		DataRateMbps:   0.25,
		RangeM:         30.0,
		TxPowerMW:      35.0,
		RxPowerMW:      20.0,
		SleepPowerMW:   0.1,
		TxLatencyMS:    15.0,
		DutyCycleLimit: 0.1,
	},
}

// ProfileFor returns the profile for a radio technology.
func ProfileFor(radio Radio) (Profile, error) {
	p, ok := profiles[radio]
	if !ok {
		return Profile{}, fmt.Errorf("phy: unknown radio type %q", radio)
	}
	return p, nil
}

// Radios lists the supported radio identifiers.
func Radios() []Radio {
	return []Radio{RadioBLE, RadioWiFi, RadioZigbee}
}

// Package phy models MAC-layer transmission timing and energy cost for the
// three supported radio technologies: BLE 5.x, Wi-Fi 802.11n, and Zigbee
// 802.15.4.
//
// Profiles are simplified but realistically bounded: data rate, tx/rx/sleep
// power, a fixed propagation/processing latency, radio range, and (for
// Zigbee) a regulatory duty-cycle limit. Latency composition per transmit:
//
//   - BLE: wait to the next periodic connection-event boundary.
//   - Wi-Fi/Zigbee: a randomized contention backoff, plus a probabilistic
//     single MAC retry at a fixed ack-success rate.
//   - All: raw airtime (payload bits / data rate) and the profile's fixed
//     latency constant.
//
// Zigbee transmissions are gated by a sliding-window duty-cycle tracker. A
// rejected transmission is a skipped cycle, not an error: the result carries
// Success=false with zero latency and energy.
//
// The model draws all randomness from the scheduler-owned RNG and is only
// ever called from the single simulation goroutine.
package phy

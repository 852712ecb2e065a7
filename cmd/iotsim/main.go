// iotsim - Discrete-Event IoT Network Simulator
//
// This is the main entry point for the iotsim command-line interface.
// iotsim models an MQTT-style publish/subscribe network of battery- and
// mains-powered devices over BLE, Wi-Fi, and Zigbee radios, driven by a
// deterministic discrete-event scheduler.
//
// The binary offers two modes of operation:
//   - `iotsim run`   executes one run to completion and prints its summary
//   - `iotsim serve` runs the HTTP/WebSocket control server for dashboards
package main

func main() {
	Execute()
}

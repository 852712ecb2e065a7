// Package node drives one simulated client device: connect, publish on a
// configured interval, and account for energy.
//
// A node is an explicit state machine advanced by scheduler callbacks. It
// scans for its gateway while out of radio range, connects with
// exponential backoff (jittered, capped, reset on success), then enters
// its publish loop: ask the PHY model for transmission timing/energy, skip
// the cycle when the duty-cycle gate rejects, otherwise hand the message
// to the broker and charge transmit plus residual sleep energy against the
// battery. A drained battery kills the node.
//
// Nodes only ever touch their broker session through Engine calls.
package node

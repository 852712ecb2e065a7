// Package broker implements the simulated MQTT session and delivery engine.
//
// It owns all per-client session state (subscriptions, QoS1 inflight
// bookkeeping, offline queues, reconnect backoff) and the bounded delivery
// queue. Clients interact with their session exclusively through Engine
// calls; nothing outside this package mutates a Session.
//
// The engine is passive: it performs no scheduling of its own beyond QoS1
// ack timers and failover recovery. The simulation driver invokes
// ProcessQueue and CheckKeepAlive once per tick, which keeps every queue
// and timer decision on the single simulated clock.
//
// Simulated failures are outcomes, not errors: WAN loss and queue overflow
// are silent counted drops, keep-alive timeouts force reconnection with
// exponential backoff, and QoS1 retry exhaustion is silent per-message
// loss. All of them surface in the metrics collector.
package broker

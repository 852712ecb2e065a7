package broker

import (
	"sort"

	"github.com/nerrad567/iotsim-core/internal/metrics"
	"github.com/nerrad567/iotsim-core/internal/sched"
)

const msPerSecond = 1000.0

// queued is one message waiting in the broker's bounded delivery queue,
// tagged with the WAN link it arrived over.
type queued struct {
	msg  *Message
	link Link
}

// Engine is the simulated broker. It is only ever called from the single
// simulation goroutine and therefore holds no locks.
type Engine struct {
	sched   *sched.Scheduler
	metrics *metrics.Collector
	cfg     Config

	sessions map[string]*Session
	order    []string // session registration order, for deterministic sweeps
	retained map[string]*Message
	queue    []queued
	links    map[string]Link

	nextID         uint64
	backoffS       map[string]float64
	failoverActive bool
}

// NewEngine creates a broker engine bound to a scheduler and collector.
// Gateway WAN links are registered with SetGatewayLink.
func NewEngine(s *sched.Scheduler, collector *metrics.Collector, cfg Config) *Engine {
	return &Engine{
		sched:    s,
		metrics:  collector,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
		retained: make(map[string]*Message),
		links:    make(map[string]Link),
		backoffS: make(map[string]float64),
	}
}

// SetGatewayLink registers the WAN link parameters for one gateway.
func (e *Engine) SetGatewayLink(gatewayID string, link Link) {
	e.links[gatewayID] = link
}

// Session returns the session for a client, or nil.
func (e *Engine) Session(clientID string) *Session {
	return e.sessions[clientID]
}

// QueueDepth returns the current delivery-queue depth.
func (e *Engine) QueueDepth() int { return len(e.queue) }

// FailoverActive reports whether a failover is in progress.
func (e *Engine) FailoverActive() bool { return e.failoverActive }

// Connect creates a session for a client, or resumes an existing one when
// cleanSession is false. A clean connect wipes subscriptions, inflight
// state, and any offline queue; a resumed persistent session replays its
// offline queue immediately, in publish order.
func (e *Engine) Connect(clientID string, cleanSession bool, keepAlive float64, will *Will) *Session {
	now := e.sched.Now()

	if session, ok := e.sessions[clientID]; ok && !cleanSession {
		session.Connected = true
		session.LastSeen = now
		session.KeepAlive = keepAlive
		session.NextReconnect = 0
		if will != nil {
			session.Will = will
		}
		e.replayOffline(session)
		delete(e.backoffS, clientID)
		e.metrics.UpdateClientState(clientID, metrics.StateConnected)
		return session
	}

	session := &Session{
		ClientID:      clientID,
		CleanSession:  cleanSession,
		Connected:     true,
		KeepAlive:     keepAlive,
		LastSeen:      now,
		Subscriptions: make(map[string]int),
		Inflight:      make(map[uint64]*Message),
		RetransmitAt:  make(map[uint64]float64),
		Will:          will,
	}
	if _, existed := e.sessions[clientID]; !existed {
		e.order = append(e.order, clientID)
	}
	e.sessions[clientID] = session
	delete(e.backoffS, clientID)
	e.metrics.UpdateClientState(clientID, metrics.StateConnected)
	return session
}

// Disconnect marks the session disconnected and, if a last-will is
// registered, publishes it through the normal publish path so it gets the
// same loss/latency treatment as any WAN-bound message.
func (e *Engine) Disconnect(clientID string) {
	session, ok := e.sessions[clientID]
	if !ok {
		return
	}
	session.Connected = false
	session.LastSeen = e.sched.Now()
	if session.Will != nil {
		e.Publish(clientID, &Message{
			Topic:   session.Will.Topic,
			Payload: session.Will.Payload,
			QoS:     session.Will.QoS,
		}, "")
	}
	e.metrics.UpdateClientState(clientID, metrics.StateDisconnected)
}

// Publish assigns the message a fresh id and timestamp, selects the WAN
// link, and places it on the bounded delivery queue. At capacity the
// message is dropped and counted; the caller is never blocked.
func (e *Engine) Publish(clientID string, msg *Message, gatewayID string) {
	e.nextID++
	msg.ID = e.nextID
	msg.Sender = clientID
	msg.Timestamp = e.sched.Now()

	link := Link{LatencyMS: e.cfg.WANLatencyMS, LossRate: e.cfg.WANLossRate}
	if gw, ok := e.links[gatewayID]; gatewayID != "" && ok {
		link = gw
	}

	e.metrics.RecordSend()
	e.enqueue(msg, link)

	if msg.Retain {
		e.retained[msg.Topic] = msg
	}
	if session, ok := e.sessions[clientID]; ok {
		session.LastSeen = e.sched.Now()
	}
}

// Subscribe registers interest in a topic filter. A retained message on
// that exact topic is delivered immediately at a small fixed latency.
func (e *Engine) Subscribe(clientID string, topic string, qos int) {
	session, ok := e.sessions[clientID]
	if !ok {
		return
	}
	session.Subscriptions[topic] = qos
	session.LastSeen = e.sched.Now()
	if _, ok := e.retained[topic]; ok {
		e.deliver(session, e.retained[topic], retainedLatencyMS, false)
	}
}

// Ack clears a QoS1 inflight entry: the message and its retransmit deadline.
func (e *Engine) Ack(clientID string, msgID uint64) {
	session, ok := e.sessions[clientID]
	if !ok {
		return
	}
	delete(session.Inflight, msgID)
	delete(session.RetransmitAt, msgID)
}

// ProcessQueue drains the delivery queue once: applies the per-link loss
// roll, computes delivered latency with jitter, and fans surviving messages
// out to matching subscribers. Invoked once per simulated tick.
func (e *Engine) ProcessQueue() {
	pending := e.queue
	e.queue = nil
	e.metrics.SetQueueDepth(0)

	for _, q := range pending {
		if e.sched.Rand().Float64() < q.link.LossRate {
			continue // silent WAN loss
		}
		latencyMS := q.link.LatencyMS + e.sched.Rand().Float64()*e.cfg.WANJitterMS
		e.fanOut(q.msg, latencyMS)
	}
}

// fanOut delivers one message to every subscriber whose filter matches.
// Connected subscribers receive it now; disconnected persistent sessions
// queue it for replay on reconnect.
func (e *Engine) fanOut(msg *Message, latencyMS float64) {
	for _, clientID := range e.order {
		session := e.sessions[clientID]
		if !e.subscriptionMatches(session, msg.Topic) {
			continue
		}
		if !session.Connected {
			if !session.CleanSession {
				session.Offline = append(session.Offline, msg)
			}
			continue
		}

		dup := e.sched.Rand().Float64() < e.cfg.DuplicateProb
		e.deliver(session, msg, latencyMS, dup)

		if msg.QoS == 1 {
			session.Inflight[msg.ID] = msg
			session.RetransmitAt[msg.ID] = e.sched.Now() + 2*latencyMS/msPerSecond
			e.scheduleAck(clientID, msg.ID, latencyMS)
		}
	}
}

// subscriptionMatches checks the session's filters in sorted order so runs
// replay deterministically.
func (e *Engine) subscriptionMatches(session *Session, topic string) bool {
	filters := make([]string, 0, len(session.Subscriptions))
	for f := range session.Subscriptions {
		filters = append(filters, f)
	}
	sort.Strings(filters)
	for _, f := range filters {
		if MatchTopic(f, topic) {
			return true
		}
	}
	return false
}

// deliver records one delivery, plus a duplicate event when the spurious
// duplicate roll fired.
func (e *Engine) deliver(session *Session, msg *Message, latencyMS float64, dup bool) {
	e.metrics.RecordDelivery(latencyMS)
	if dup || msg.Dup {
		e.metrics.RecordDuplicate()
	}
	e.metrics.UpdateClientState(session.ClientID, metrics.StateConnected)
}

// scheduleAck simulates the PUBACK arriving back at the broker after the
// same delivery latency, clearing the inflight entry.
func (e *Engine) scheduleAck(clientID string, msgID uint64, latencyMS float64) {
	_ = e.sched.ScheduleAfter(latencyMS/msPerSecond, func() {
		if e.sched.Stopped() {
			return
		}
		e.Ack(clientID, msgID)
	})
}

// CheckKeepAlive sweeps every session once: force-disconnects sessions past
// their keep-alive interval (scheduling an exponential-backoff reconnect),
// runs due reconnects, and retransmits or expires overdue QoS1 messages.
// Invoked once per simulated tick.
func (e *Engine) CheckKeepAlive() {
	now := e.sched.Now()
	var reconnect []string

	for _, clientID := range e.order {
		session := e.sessions[clientID]

		switch {
		case session.Connected && now-session.LastSeen > session.KeepAlive:
			e.Disconnect(clientID)
			e.scheduleReconnect(session)
			e.metrics.UpdateClientState(clientID, metrics.StateReconnecting)
		case !session.Connected && session.NextReconnect > 0 && now >= session.NextReconnect:
			reconnect = append(reconnect, clientID)
		}

		e.retransmitOverdue(session, now)
	}

	for _, clientID := range reconnect {
		session := e.sessions[clientID]
		session.NextReconnect = 0
		e.Connect(clientID, session.CleanSession, session.KeepAlive, nil)
	}
}

// retransmitOverdue re-queues QoS1 messages whose retransmit deadline has
// passed, marking them duplicates; messages past the retry limit leave
// inflight bookkeeping silently (the message is considered lost).
func (e *Engine) retransmitOverdue(session *Session, now float64) {
	overdue := make([]uint64, 0, len(session.RetransmitAt))
	for msgID, deadline := range session.RetransmitAt {
		if now >= deadline {
			overdue = append(overdue, msgID)
		}
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i] < overdue[j] })

	for _, msgID := range overdue {
		msg, ok := session.Inflight[msgID]
		if !ok {
			delete(session.RetransmitAt, msgID)
			continue
		}
		msg.Retries++
		if msg.Retries > e.cfg.RetryLimit {
			delete(session.Inflight, msgID)
			delete(session.RetransmitAt, msgID)
			continue
		}
		msg.Dup = true
		session.RetransmitAt[msgID] = now + e.cfg.RetransmitFloorS
		e.enqueue(msg, Link{LatencyMS: e.cfg.WANLatencyMS, LossRate: e.cfg.WANLossRate})
	}
}

// TriggerFailover simulates a broker outage: every session disconnects and
// reports "reconnecting"; after downSeconds of simulated time all sessions
// reconnect using their own persisted clean-session flags. A second call
// while a failover is in progress is a no-op.
func (e *Engine) TriggerFailover(downSeconds float64) {
	if e.failoverActive {
		return
	}
	e.failoverActive = true

	for _, clientID := range e.order {
		session := e.sessions[clientID]
		session.Connected = false
		e.metrics.UpdateClientState(clientID, metrics.StateReconnecting)
	}

	_ = e.sched.ScheduleAfter(downSeconds, func() {
		if e.sched.Stopped() {
			e.failoverActive = false
			return
		}
		for _, clientID := range e.order {
			session := e.sessions[clientID]
			e.Connect(clientID, session.CleanSession, session.KeepAlive, nil)
		}
		e.failoverActive = false
	})
}

// enqueue places a message on the bounded delivery queue, dropping and
// counting when at capacity. Topic tallies feed the per-topic rate metric.
func (e *Engine) enqueue(msg *Message, link Link) {
	if len(e.queue) >= e.cfg.QueueCapacity {
		e.metrics.RecordQueueDrop()
		return
	}
	e.queue = append(e.queue, queued{msg: msg, link: link})
	e.metrics.SetQueueDepth(len(e.queue))
	e.metrics.RecordTopic(msg.Topic)
}

// replayOffline delivers a resumed session's queued messages immediately,
// in publish order, at the fixed replay latency.
func (e *Engine) replayOffline(session *Session) {
	for _, msg := range session.Offline {
		e.deliver(session, msg, retainedLatencyMS, false)
	}
	session.Offline = nil
}

// scheduleReconnect computes the next broker-side reconnect attempt using
// exponential backoff: starts at the minimum, doubles per failure, capped.
func (e *Engine) scheduleReconnect(session *Session) {
	backoff, ok := e.backoffS[session.ClientID]
	if !ok {
		backoff = e.cfg.ReconnectBackoffMinS
	} else {
		backoff *= 2
		if backoff > e.cfg.ReconnectBackoffMaxS {
			backoff = e.cfg.ReconnectBackoffMaxS
		}
	}
	e.backoffS[session.ClientID] = backoff
	session.NextReconnect = e.sched.Now() + backoff
}

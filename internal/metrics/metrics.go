// Package metrics holds the Prometheus collectors of the chat server. A nil
// *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	wsConnections     prometheus.Gauge
	messagesPersisted prometheus.Counter
	messagesDeleted   prometheus.Counter
	broadcastDropped  prometheus.Counter
	friendRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_ws_connections",
			Help: "Number of live websocket connections on this instance.",
		}),
		messagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_messages_persisted_total",
			Help: "Messages committed to the message log.",
		}),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_messages_deleted_total",
			Help: "Messages replaced by a tombstone.",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_broadcast_dropped_total",
			Help: "Events dropped because a client's send buffer was full.",
		}),
		friendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_friend_requests_total",
			Help: "Relationship ledger operations by action.",
		}, []string{"action"}),
	}
	reg.MustRegister(m.wsConnections, m.messagesPersisted, m.messagesDeleted, m.broadcastDropped, m.friendRequests)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

func (m *Metrics) MessagePersisted() {
	if m != nil {
		m.messagesPersisted.Inc()
	}
}

func (m *Metrics) MessageDeleted() {
	if m != nil {
		m.messagesDeleted.Inc()
	}
}

func (m *Metrics) BroadcastDropped() {
	if m != nil {
		m.broadcastDropped.Inc()
	}
}

// FriendRequest counts a ledger action: create, accept, reject or remove.
func (m *Metrics) FriendRequest(action string) {
	if m != nil {
		m.friendRequests.WithLabelValues(action).Inc()
	}
}

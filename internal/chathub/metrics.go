package chathub

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the chat engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	Handshakes       *prometheus.CounterVec
	InboundEvents    *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Chat sessions currently registered in a room.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_handshakes_total",
			Help: "Chat socket handshakes by outcome.",
		}, []string{"outcome"}),
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_inbound_events_total",
			Help: "Inbound chat events by type and outcome.",
		}, []string{"type", "outcome"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Outbound events dropped because a connection was closed or full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ActiveSessions, m.Handshakes, m.InboundEvents, m.DeliveryFailures)
	}
	return m
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

// Handshake counts a socket handshake by outcome.
func (m *Metrics) Handshake(outcome string) {
	if m != nil {
		m.Handshakes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) inbound(eventType, outcome string) {
	if m != nil {
		m.InboundEvents.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) deliveryFailed() {
	if m != nil {
		m.DeliveryFailures.Inc()
	}
}

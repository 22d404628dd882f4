package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "guessduel"

// Metrics holds the Prometheus collectors of the room service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Connections      prometheus.Gauge
	Messages         *prometheus.CounterVec
	BroadcastDropped prometheus.Counter
	RoomsCreated     prometheus.Counter
	RoomsFinished    *prometheus.CounterVec
	CollabRequests   *prometheus.CounterVec
	CollabLatency    *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound client messages by type and outcome.",
		}, []string{"type", "outcome"}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Broadcast deliveries skipped because the member had no usable connection.",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created.",
		}),
		RoomsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_finished_total",
			Help:      "Rooms that reached the finished state, by reason.",
		}, []string{"reason"}),
		CollabRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collab_requests_total",
			Help:      "Calls to collaborator services by service, operation and outcome.",
		}, []string{"service", "op", "outcome"}),
		CollabLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collab_request_seconds",
			Help:      "Latency of collaborator calls including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collab_breaker_state",
			Help:      "Circuit breaker state per collaborator (0 closed, 1 half-open, 2 open).",
		}, []string{"service"}),
	}

	reg.MustRegister(
		m.Connections,
		m.Messages,
		m.BroadcastDropped,
		m.RoomsCreated,
		m.RoomsFinished,
		m.CollabRequests,
		m.CollabLatency,
		m.BreakerState,
	)
	return m
}

// ConnectionOpened increments the open connection gauge
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

// ConnectionClosed decrements the open connection gauge
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

// MessageHandled counts one inbound message
func (m *Metrics) MessageHandled(msgType, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(msgType, outcome).Inc()
}

// DeliveryDropped counts a skipped broadcast delivery
func (m *Metrics) DeliveryDropped() {
	if m == nil {
		return
	}
	m.BroadcastDropped.Inc()
}

// RoomCreated counts a new room
func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.RoomsCreated.Inc()
}

// RoomFinished counts a room reaching the finished state
func (m *Metrics) RoomFinished(reason string) {
	if m == nil {
		return
	}
	m.RoomsFinished.WithLabelValues(reason).Inc()
}

// CollabCall records one collaborator call
func (m *Metrics) CollabCall(service, op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CollabRequests.WithLabelValues(service, op, outcome).Inc()
	m.CollabLatency.WithLabelValues(service, op).Observe(elapsed.Seconds())
}

// SetBreakerState records the breaker state of a collaborator
func (m *Metrics) SetBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(float64(state))
}

// RegisterRoomGauges exposes live room counts read from stats on every scrape
func (m *Metrics) RegisterRoomGauges(reg prometheus.Registerer, stats func() map[string]int) {
	if m == nil {
		return
	}
	for _, status := range []string{"waiting", "playing", "finished"} {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "rooms",
			Help:        "Rooms currently held by the room manager, by status.",
			ConstLabels: prometheus.Labels{"status": status},
		}, func() float64 {
			return float64(stats()[status])
		}))
	}
}

// Package metrics exposes coordinator counters for prometheus. All methods
// are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "meetclient"

type Metrics struct {
	Registry *prometheus.Registry

	producersPublished     *prometheus.CounterVec
	producersClosed        *prometheus.CounterVec
	consumersCreated       *prometheus.CounterVec
	duplicateAnnouncements prometheus.Counter
	ignoredAcks            *prometheus.CounterVec
	negotiationTimeouts    *prometheus.CounterVec
	callTransitions        *prometheus.CounterVec
	signalMessages         *prometheus.CounterVec
	profileChanges         *prometheus.CounterVec

	openTransports prometheus.Gauge
	openProducers  prometheus.Gauge
	openConsumers  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		producersPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "producers_published_total", Help: "Local producers acknowledged by the server.",
		}, []string{"slot"}),
		producersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "producers_closed_total", Help: "Local producers closed.",
		}, []string{"slot"}),
		consumersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "consumers_created_total", Help: "Remote producers consumed.",
		}, []string{"kind"}),
		duplicateAnnouncements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicate_announcements_total", Help: "new-producer announcements for an already tracked producer.",
		}),
		ignoredAcks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ignored_acks_total", Help: "Acknowledgments that matched no outstanding request.",
		}, []string{"event"}),
		negotiationTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "negotiation_timeouts_total", Help: "Negotiation attempts abandoned after their timeout.",
		}, []string{"step"}),
		callTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "call_transitions_total", Help: "Call state machine transitions by target state.",
		}, []string{"to"}),
		signalMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_messages_total", Help: "Signaling messages by direction and type.",
		}, []string{"direction", "type"}),
		profileChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "profile_changes_total", Help: "Optimization profiles applied, by tier and reason.",
		}, []string{"tier", "reason"}),
		openTransports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_transports", Help: "Transports currently open.",
		}),
		openProducers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_producers", Help: "Local producers currently open.",
		}),
		openConsumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_consumers", Help: "Consumers currently open.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.producersPublished, m.producersClosed, m.consumersCreated, m.duplicateAnnouncements,
		m.ignoredAcks, m.negotiationTimeouts, m.callTransitions, m.signalMessages, m.profileChanges,
		m.openTransports, m.openProducers, m.openConsumers,
	)
	return m
}

func (m *Metrics) ProducerPublished(slot string) {
	if m == nil {
		return
	}
	m.producersPublished.WithLabelValues(slot).Inc()
	m.openProducers.Inc()
}

func (m *Metrics) ProducerClosed(slot string) {
	if m == nil {
		return
	}
	m.producersClosed.WithLabelValues(slot).Inc()
	m.openProducers.Dec()
}

func (m *Metrics) ConsumerCreated(kind string) {
	if m == nil {
		return
	}
	m.consumersCreated.WithLabelValues(kind).Inc()
	m.openConsumers.Inc()
}

func (m *Metrics) ConsumerClosed() {
	if m == nil {
		return
	}
	m.openConsumers.Dec()
}

func (m *Metrics) DuplicateAnnouncement() {
	if m == nil {
		return
	}
	m.duplicateAnnouncements.Inc()
}

func (m *Metrics) IgnoredAck(event string) {
	if m == nil {
		return
	}
	m.ignoredAcks.WithLabelValues(event).Inc()
}

func (m *Metrics) NegotiationTimeout(step string) {
	if m == nil {
		return
	}
	m.negotiationTimeouts.WithLabelValues(step).Inc()
}

func (m *Metrics) CallTransition(to string) {
	if m == nil {
		return
	}
	m.callTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ProfileChanged(tier, reason string) {
	if m == nil {
		return
	}
	m.profileChanges.WithLabelValues(tier, reason).Inc()
}

func (m *Metrics) SignalMessage(direction, typ string) {
	if m == nil {
		return
	}
	m.signalMessages.WithLabelValues(direction, typ).Inc()
}

func (m *Metrics) TransportOpened() {
	if m == nil {
		return
	}
	m.openTransports.Inc()
}

func (m *Metrics) TransportClosed() {
	if m == nil {
		return
	}
	m.openTransports.Dec()
}

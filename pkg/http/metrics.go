package http

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "graphql_server"

// Metrics collects the prometheus metrics of the upgrade broker and the subscription engines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	upgrades    *prometheus.CounterVec
	connections *prometheus.GaugeVec
	drainErrors *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them on registerer. A nil registerer leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		upgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upgrades_total",
			Help:      "Websocket upgrade requests by subprotocol decision.",
		}, []string{"decision"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections by subprotocol.",
		}, []string{"protocol"}),
		drainErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "drain_errors_total",
			Help:      "Failed shutdown steps.",
		}, []string{"step"}),
	}

	if registerer == nil {
		return m, nil
	}

	collectors := []prometheus.Collector{m.upgrades, m.connections, m.drainErrors}
	for i, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			for _, registered := range collectors[:i] {
				registerer.Unregister(registered)
			}
			return nil, errors.Wrap(err, "could not register metrics")
		}
	}
	return m, nil
}

func (m *Metrics) ObserveUpgrade(decision string) {
	if m == nil {
		return
	}
	m.upgrades.WithLabelValues(decision).Inc()
}

func (m *Metrics) ConnectionOpened(protocol string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(protocol).Inc()
}

func (m *Metrics) ConnectionClosed(protocol string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(protocol).Dec()
}

func (m *Metrics) ObserveDrainError(step string) {
	if m == nil {
		return
	}
	m.drainErrors.WithLabelValues(step).Inc()
}

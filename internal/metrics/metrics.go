// Package metrics exposes board activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madhatter5501/noteboard/kanban"
)

const namespace = "noteboard"

// Metrics holds the board collectors, registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	// operations counts board commands.
	// Labels: op (add_card, move_card, ...), result (ok or an error kind)
	operations *prometheus.CounterVec

	// transitions counts moves made by the rules engine.
	// Labels: action
	transitions *prometheus.CounterVec

	// cards tracks cards per column.
	// Labels: column
	cards *prometheus.GaugeVec

	locked prometheus.Gauge

	// requestDuration measures dashboard requests.
	// Labels: method, route
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and a registry holding them plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "operations_total",
			Help:      "Board commands by result",
		}, []string{"op", "result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "transitions_total",
			Help:      "Automatic card moves by action",
		}, []string{"action"}),
		cards: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "cards",
			Help:      "Cards per column",
		}, []string{"column"}),
		locked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "locked",
			Help:      "1 while the in-process column is full",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Dashboard request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one command and, when it moved a card, the
// transition.
func (m *Metrics) RecordOperation(op string, action kanban.Action, err error) {
	result := "ok"
	if err != nil {
		result = kanban.Kind(err)
	}
	m.operations.WithLabelValues(op, result).Inc()
	if action != kanban.ActionNone {
		m.transitions.WithLabelValues(action.String()).Inc()
	}
}

// Observe updates the gauges from a snapshot. It matches the board's
// Subscribe signature.
func (m *Metrics) Observe(s kanban.Snapshot) {
	for _, col := range kanban.Columns {
		m.cards.WithLabelValues(string(col)).Set(float64(len(s.Column(col))))
	}
	if s.Locked {
		m.locked.Set(1)
	} else {
		m.locked.Set(0)
	}
}

// ObserveRequest records the duration of one request.
func (m *Metrics) ObserveRequest(method, route string, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

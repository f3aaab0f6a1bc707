// Package metrics exports portwire activity as Prometheus metrics and
// serves them, with health and rule introspection, over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/portwire/internal/engine"
	"github.com/roach88/portwire/internal/graph"
)

// Metrics holds the collectors on a private registry. It implements
// engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	enqueued *prometheus.CounterVec
	applied  *prometheus.CounterVec
	reloads  *prometheus.CounterVec
}

var _ engine.Observer = (*Metrics)(nil)

// New registers the portwire collectors. depth reports the current
// command queue length; it may be nil.
func New(depth func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwire_events_total",
				Help: "Port topology events received, by kind.",
			},
			[]string{"kind"},
		),
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwire_commands_enqueued_total",
				Help: "Commands produced by rule evaluation and queued for dispatch.",
			},
			[]string{"action"},
		),
		applied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwire_commands_applied_total",
				Help: "Commands dispatched to the server, by outcome.",
			},
			[]string{"action", "result"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwire_rule_reloads_total",
				Help: "Rule file reloads, by outcome.",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.events, m.enqueued, m.applied, m.reloads)

	if depth != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "portwire_queue_depth",
				Help: "Commands waiting in the dispatch queue.",
			},
			func() float64 { return float64(depth()) },
		))
	}
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventReceived implements engine.Observer.
func (m *Metrics) EventReceived(ev graph.Event) {
	kind := "registered"
	if !ev.Registered {
		kind = "unregistered"
	}
	m.events.WithLabelValues(kind).Inc()
}

// CommandsEnqueued implements engine.Observer.
func (m *Metrics) CommandsEnqueued(cmds []engine.Command) {
	for _, cmd := range cmds {
		m.enqueued.WithLabelValues(cmd.Action.String()).Inc()
	}
}

// CommandApplied implements engine.Observer.
func (m *Metrics) CommandApplied(cmd engine.Command, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.applied.WithLabelValues(cmd.Action.String(), result).Inc()
}

// RuleReload counts a rule file reload attempt.
func (m *Metrics) RuleReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

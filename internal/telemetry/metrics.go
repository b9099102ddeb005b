package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pipeworks/internal/sim/network"
	"pipeworks/internal/sim/transport"
)

const namespace = "pipeworks"

// Metrics holds the pipe network collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	leaves   *prometheus.CounterVec
	items    *prometheus.CounterVec
	ticks    prometheus.Counter
	tickTime prometheus.Histogram
	units    prometheus.Gauge
	stuck    prometheus.Gauge
	drops    prometheus.Gauge
	sessions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		leaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_leaves_total",
			Help:      "Units leaving a pipe, by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Item quantity moved on unit leave, by outcome.",
		}, []string{"outcome"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Network ticks simulated.",
		}),
		tickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent per network tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		units: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_in_transit",
			Help:      "Units currently inside pipes.",
		}),
		stuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_stuck",
			Help:      "Units currently held at a pipe center.",
		}),
		drops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_stacks",
			Help:      "Stacks released into the world since start.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observer_sessions",
			Help:      "Connected observer websocket sessions.",
		}),
	}
	m.reg.MustRegister(
		m.leaves, m.items, m.ticks, m.tickTime, m.units, m.stuck, m.drops, m.sessions,
		collectors.NewGoCollector(),
	)
	return m
}

// Leave matches network.Ops.Leave.
func (m *Metrics) Leave(outcome transport.Outcome, _ string, count int) {
	o := outcome.String()
	m.leaves.WithLabelValues(o).Inc()
	if count > 0 {
		m.items.WithLabelValues(o).Add(float64(count))
	}
}

// ObserveTick records one finished tick.
func (m *Metrics) ObserveTick(sum network.TickEntry, took time.Duration) {
	m.ticks.Inc()
	m.tickTime.Observe(took.Seconds())
	m.units.Set(float64(sum.Units))
	m.stuck.Set(float64(sum.Stuck))
	m.drops.Set(float64(sum.Drops))
}

func (m *Metrics) SetSessions(n int) { m.sessions.Set(float64(n)) }

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

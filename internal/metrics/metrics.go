// Package metrics exposes Prometheus counters for reconciliation outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	planLines      *prometheus.CounterVec
	conversions    *prometheus.CounterVec
	completions    prometheus.Counter
	reloads        *prometheus.CounterVec
	densityVersion prometheus.Gauge
}

// New registers the collectors on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		planLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_plan_lines_total",
			Help: "Ingredient lines planned, by outcome and issue.",
		}, []string{"outcome", "issue"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_conversions_total",
			Help: "Unit conversions used to draw from pantry items, by tier.",
		}, []string{"tier"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_completions_total",
			Help: "Recipes marked complete.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_density_reloads_total",
			Help: "Density table reload attempts, by source and result.",
		}, []string{"source", "result"}),
		densityVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_density_table_version",
			Help: "Version of the density table currently served.",
		}),
	}
	reg.MustRegister(
		m.planLines, m.conversions, m.completions, m.reloads, m.densityVersion,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is the registry to serve on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) PlanLine(outcome, issue string) {
	if m == nil {
		return
	}
	if issue == "" {
		issue = "none"
	}
	m.planLines.WithLabelValues(outcome, issue).Inc()
}

func (m *Metrics) Conversion(tier string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(tier).Inc()
}

func (m *Metrics) Completion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// Reload counts a reload attempt from source ("file" or "dictionary") and,
// on success, publishes the new table version.
func (m *Metrics) Reload(source string, version int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues(source, "error").Inc()
		return
	}
	m.reloads.WithLabelValues(source, "ok").Inc()
	m.densityVersion.Set(float64(version))
}

// DensityVersion publishes the version served at startup.
func (m *Metrics) DensityVersion(version int) {
	if m == nil {
		return
	}
	m.densityVersion.Set(float64(version))
}

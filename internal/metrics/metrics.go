// Package metrics exposes the Prometheus instrumentation for the refresh
// loop and API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on a private registry so tests can construct
// isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal      prometheus.Counter
	RefreshErrors     prometheus.Counter
	RefreshDuration   prometheus.Histogram
	OpportunityRows   prometheus.Gauge
	ProfitableRows    prometheus.Gauge
	BestAnnualizedPct prometheus.Gauge
	AlertsSent        prometheus.Counter
}

// New constructs and registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbwatcher",
			Name:      "refresh_total",
			Help:      "Completed refresh passes.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbwatcher",
			Name:      "refresh_errors_total",
			Help:      "Refresh passes that produced no usable snapshot.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbwatcher",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of one refresh pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		OpportunityRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbwatcher",
			Name:      "opportunity_rows",
			Help:      "Rows in the current opportunity snapshot.",
		}),
		ProfitableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbwatcher",
			Name:      "profitable_rows",
			Help:      "Profitable rows in the current opportunity snapshot.",
		}),
		BestAnnualizedPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbwatcher",
			Name:      "best_annualized_pct",
			Help:      "Annualized percentage of the best current opportunity, 0 when none.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbwatcher",
			Name:      "alerts_sent_total",
			Help:      "Opportunity alerts dispatched.",
		}),
	}

	registry.MustRegister(
		m.RefreshTotal,
		m.RefreshErrors,
		m.RefreshDuration,
		m.OpportunityRows,
		m.ProfitableRows,
		m.BestAnnualizedPct,
		m.AlertsSent,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

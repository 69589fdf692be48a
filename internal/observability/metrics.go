// Package observability exposes Prometheus metrics for suitability runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "suitability"

// Metrics holds the Prometheus counters, histograms, and gauges for overlay runs.
type Metrics struct {
	RunsStarted  prometheus.Counter
	RunsFinished *prometheus.CounterVec // labels: status={complete,failed}
	RunsInFlight prometheus.Gauge

	CellsProcessed prometheus.Counter
	CellsVetoed    prometheus.Counter

	RunDuration   prometheus.Histogram
	PhaseDuration *prometheus.HistogramVec // labels: phase
	IORetries     *prometheus.CounterVec   // labels: operation={load,write}
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// Register adds the metrics to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsStarted,
		m.RunsFinished,
		m.RunsInFlight,
		m.CellsProcessed,
		m.CellsVetoed,
		m.RunDuration,
		m.PhaseDuration,
		m.IORetries,
	}
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total overlay runs started.",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Overlay runs by terminal status.",
		}, []string{"status"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Overlay runs currently executing.",
		}),
		CellsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_processed_total",
			Help:      "Grid cells combined into suitability scores.",
		}),
		CellsVetoed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_vetoed_total",
			Help:      "Grid cells forced to not suitable by a factor veto.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete overlay run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each run phase.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"phase"}),
		IORetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_retries_total",
			Help:      "Retried raster source loads and sink writes.",
		}, []string{"operation"}),
	}
}

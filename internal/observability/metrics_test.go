package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather registers m on a private registry and returns sample sums by family name.
func gather(t *testing.T, m *Metrics) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				out[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[f.GetName()] += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[f.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.CellsProcessed.Add(25)
	a.RunsFinished.WithLabelValues("complete").Inc()
	a.RunsFinished.WithLabelValues("failed").Inc()
	a.PhaseDuration.WithLabelValues("overlay").Observe(0.2)

	got := gather(t, a)
	assert.Equal(t, 25.0, got["suitability_cells_processed_total"])
	assert.Equal(t, 2.0, got["suitability_runs_finished_total"])
	assert.Equal(t, 1.0, got["suitability_phase_duration_seconds"])

	assert.Equal(t, 0.0, gather(t, b)["suitability_cells_processed_total"])
}

func TestRegister_Twice(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}

func TestNewMetrics_DefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	orig := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	t.Cleanup(func() { prometheus.DefaultRegisterer = orig })

	m := NewMetrics()
	m.RunsStarted.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["suitability_runs_started_total"])
	assert.True(t, names["suitability_runs_in_flight"])

	assert.Panics(t, func() { NewMetrics() })
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   RunStatus
		want     string
		terminal bool
	}{
		{RunStatusQueued, "queued", false},
		{RunStatusLoading, "loading", false},
		{RunStatusReclassifying, "reclassifying", false},
		{RunStatusCombining, "combining", false},
		{RunStatusPersisting, "persisting", false},
		{RunStatusComplete, "complete", true},
		{RunStatusFailed, "failed", true},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestPhaseStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status PhaseStatus
		want   string
	}{
		{PhaseStatusRunning, "running"},
		{PhaseStatusComplete, "complete"},
		{PhaseStatusFailed, "failed"},
		{PhaseStatusSkipped, "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestRunResultJSON(t *testing.T) {
	res := RunResult{
		Rows:      2,
		Cols:      3,
		Cells:     6,
		Vetoed:    1,
		Suitable:  5,
		Histogram: map[int]int{0: 1, 100: 5},
		Footprint: []byte{0x01, 0x03},
		Outputs:   []string{"land_cover", "suitability"},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"histogram":{"0":1,"100":5}`)
	assert.Contains(t, string(data), `"footprint":"AQM="`)
	assert.NotContains(t, string(data), "factor_vetoes")

	var back RunResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.Histogram, back.Histogram)
	assert.Equal(t, res.Footprint, back.Footprint)
}

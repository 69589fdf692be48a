package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/land-suitability/internal/model"
)

var testEpoch = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

func newTestSQLite(t *testing.T, clock clockwork.Clock) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func avocadoAnalysis(name string) model.Analysis {
	return model.Analysis{
		Name:    name,
		Crop:    "avocado",
		Factors: []string{"land_cover", "slope", "exposure", "drainage", "texture"},
		SRID:    4326,
	}
}

// findRun looks a run up through ListRuns.
func findRun(t *testing.T, st Store, runID string) *model.Run {
	t.Helper()
	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	for i := range runs {
		if runs[i].ID == runID {
			return &runs[i]
		}
	}
	t.Fatalf("run %s not listed", runID)
	return nil
}

func TestSQLite_CreateAndListRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	s := newTestSQLite(t, clock)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("michoacan"))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, testEpoch, run.CreatedAt)

	got := findRun(t, s, run.ID)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Equal(t, avocadoAnalysis("michoacan"), got.Analysis)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.WithinDuration(t, testEpoch, got.CreatedAt, time.Second)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	s := newTestSQLite(t, clock)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("a"))
	require.NoError(t, err)

	for _, status := range []model.RunStatus{
		model.RunStatusLoading,
		model.RunStatusReclassifying,
		model.RunStatusCombining,
		model.RunStatusPersisting,
	} {
		clock.Advance(time.Minute)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, status))

		got := findRun(t, s, run.ID)
		assert.Equal(t, status, got.Status)
	}

	got := findRun(t, s, run.ID)
	assert.WithinDuration(t, testEpoch.Add(4*time.Minute), got.UpdatedAt, time.Second)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewRealClock())

	err := s.UpdateRunStatus(context.Background(), "nonexistent-id", model.RunStatusLoading)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: nonexistent-id")
}

func TestSQLite_CompleteRun(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewFakeClockAt(testEpoch))
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("a"))
	require.NoError(t, err)

	result := &model.RunResult{
		Rows:      2,
		Cols:      2,
		Cells:     4,
		Vetoed:    1,
		Suitable:  3,
		MeanScore: 83.33,
		MaxScore:  100,
		Histogram: map[int]int{0: 1, 50: 1, 100: 2},
		Footprint: []byte{0x01, 0x03, 0x00, 0x00, 0x20},
		Outputs:   []string{"suitability"},
		Phases: []model.PhaseResult{
			{Name: "load", Status: model.PhaseStatusComplete, Duration: 12},
		},
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, result))

	got := findRun(t, s, run.ID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, result, got.Result)

	assert.Error(t, s.CompleteRun(ctx, "missing", result))
}

func TestSQLite_FailRun(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewRealClock())
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("a"))
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "suitability: layer drainage has shape 3x4, expected 4x4"))

	got := findRun(t, s, run.ID)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "layer drainage")
	assert.Nil(t, got.Result)

	err = s.FailRun(ctx, "missing", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	s := newTestSQLite(t, clock)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		run, err := s.CreateRun(ctx, avocadoAnalysis(name))
		require.NoError(t, err)
		ids = append(ids, run.ID)
		clock.Advance(time.Minute)
	}
	citrus := avocadoAnalysis("grove")
	citrus.Crop = "citrus"
	_, err := s.CreateRun(ctx, citrus)
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, ids[1], "boom"))

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{name: "crop newest first", filter: RunFilter{Crop: "avocado"}, want: []string{"third", "second", "first"}},
		{name: "status", filter: RunFilter{Status: model.RunStatusFailed}, want: []string{"second"}},
		{name: "limit", filter: RunFilter{Crop: "avocado", Limit: 1}, want: []string{"third"}},
		{name: "offset", filter: RunFilter{Crop: "avocado", Limit: 2, Offset: 2}, want: []string{"first"}},
		{name: "other crop", filter: RunFilter{Crop: "citrus"}, want: []string{"grove"}},
		{name: "created after", filter: RunFilter{Crop: "avocado", CreatedAfter: testEpoch.Add(time.Minute)}, want: []string{"third", "second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)

			var names []string
			for _, r := range runs {
				names = append(names, r.Analysis.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSQLite_Phases(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewFakeClockAt(testEpoch))
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("a"))
	require.NoError(t, err)

	phase, err := s.CreatePhase(ctx, run.ID, "reclassify")
	require.NoError(t, err)
	assert.NotEmpty(t, phase.ID)
	assert.Equal(t, run.ID, phase.RunID)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)
	assert.Equal(t, testEpoch, phase.StartedAt)

	err = s.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name:     "reclassify",
		Status:   model.PhaseStatusComplete,
		Duration: 40,
		Metadata: map[string]any{"factors": 5},
	})
	require.NoError(t, err)

	var status string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT status FROM run_phases WHERE id = ?`, phase.ID).Scan(&status))
	assert.Equal(t, "complete", status)

	err = s.CompletePhase(ctx, "missing", &model.PhaseResult{Status: model.PhaseStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase not found")
}

func TestSQLite_CreatePhase_UnknownRun(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewRealClock())

	_, err := s.CreatePhase(context.Background(), "no-such-run", "load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert phase for run no-such-run")
}

func TestSQLite_FactorVetoes(t *testing.T) {
	s := newTestSQLite(t, clockwork.NewRealClock())
	ctx := context.Background()

	run, err := s.CreateRun(ctx, avocadoAnalysis("a"))
	require.NoError(t, err)

	require.NoError(t, s.SaveFactorVetoes(ctx, run.ID, map[string]int{"slope": 4, "land_cover": 2, "texture": 0}))
	// Saving again replaces counts.
	require.NoError(t, s.SaveFactorVetoes(ctx, run.ID, map[string]int{"slope": 5}))
	require.NoError(t, s.SaveFactorVetoes(ctx, run.ID, nil))

	got, err := s.ListFactorVetoes(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.FactorVeto{
		{RunID: run.ID, Factor: "land_cover", Cells: 2},
		{RunID: run.ID, Factor: "slope", Cells: 5},
		{RunID: run.ID, Factor: "texture", Cells: 0},
	}, got)

	none, err := s.ListFactorVetoes(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewSQLite_CloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	run, err := s.CreateRun(ctx, avocadoAnalysis("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() }) //nolint:errcheck
	require.NoError(t, s2.Migrate(ctx))

	got := findRun(t, s2, run.ID)
	assert.Equal(t, "persisted", got.Analysis.Name)
}

func TestNewSQLite_InvalidPath(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing-dir", "x.db"))
	assert.Error(t, err)
}

func TestVetoRows_SortedByFactor(t *testing.T) {
	rows := vetoRows("r1", map[string]int{"texture": 1, "drainage": 2, "slope": 3})
	assert.Equal(t, [][]any{
		{"r1", "drainage", 2},
		{"r1", "slope", 3},
		{"r1", "texture", 1},
	}, rows)
	assert.Empty(t, vetoRows("r1", nil))
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)

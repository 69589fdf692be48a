package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/land-suitability/internal/model"
	"github.com/sells-group/land-suitability/internal/raster"
	"github.com/sells-group/land-suitability/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, analysis model.Analysis) (*model.Run, error) {
	args := m.Called(ctx, analysis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, reason string) error {
	args := m.Called(ctx, runID, reason)
	return args.Error(0)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunPhase), args.Error(1)
}

func (m *mockStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	args := m.Called(ctx, phaseID, result)
	return args.Error(0)
}

func (m *mockStore) SaveFactorVetoes(ctx context.Context, runID string, counts map[string]int) error {
	args := m.Called(ctx, runID, counts)
	return args.Error(0)
}

func (m *mockStore) ListFactorVetoes(ctx context.Context, runID string) ([]model.FactorVeto, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FactorVeto), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Flaky Sink ---

// flakySink returns err for its first `failures` writes and for every write
// of failName, then delegates to next.
type flakySink struct {
	mu       sync.Mutex
	failures int
	failName string
	err      error
	calls    int
	discards int
	next     Sink
}

func (s *flakySink) Write(ctx context.Context, runID, name string, grid *raster.Grid, gt raster.GeoTransform) error {
	s.mu.Lock()
	s.calls++
	if s.failures > 0 || name == s.failName {
		if s.failures > 0 {
			s.failures--
		}
		s.mu.Unlock()
		return s.err
	}
	s.mu.Unlock()
	return s.next.Write(ctx, runID, name, grid, gt)
}

func (s *flakySink) Commit(ctx context.Context, runID string) error {
	return s.next.Commit(ctx, runID)
}

func (s *flakySink) Discard(ctx context.Context, runID string) error {
	s.mu.Lock()
	s.discards++
	s.mu.Unlock()
	return s.next.Discard(ctx, runID)
}

var (
	_ store.Store = (*mockStore)(nil)
	_ Sink        = (*flakySink)(nil)
)

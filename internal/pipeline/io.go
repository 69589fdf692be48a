package pipeline

import (
	"context"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/land-suitability/internal/raster"
	"github.com/sells-group/land-suitability/internal/suitability"
)

// AggregateName is the output name of the combined suitability grid.
const AggregateName = "suitability"

// Source supplies the raw factor grids of one analysis area. Decoding raster
// files is left to implementations.
type Source interface {
	Load(ctx context.Context, factor suitability.Factor) (*raster.Grid, error)
	Reference(ctx context.Context) (raster.GeoTransform, error)
}

// Sink receives the scored factor grids and the aggregate. Grids written for
// a run stay staged until Commit publishes all of them at once; Discard drops
// whatever a run has staged.
type Sink interface {
	Write(ctx context.Context, runID, name string, grid *raster.Grid, gt raster.GeoTransform) error
	Commit(ctx context.Context, runID string) error
	Discard(ctx context.Context, runID string) error
}

// MemorySource serves grids held in memory.
type MemorySource struct {
	mu        sync.RWMutex
	grids     map[suitability.Factor]*raster.Grid
	transform raster.GeoTransform
}

// NewMemorySource creates a source over the given grids.
func NewMemorySource(gt raster.GeoTransform, grids map[suitability.Factor]*raster.Grid) *MemorySource {
	s := &MemorySource{
		grids:     make(map[suitability.Factor]*raster.Grid, len(grids)),
		transform: gt,
	}
	for f, g := range grids {
		s.grids[f] = g
	}
	return s
}

// Put sets or replaces the grid for a factor.
func (s *MemorySource) Put(f suitability.Factor, g *raster.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[f] = g
}

func (s *MemorySource) Load(ctx context.Context, factor suitability.Factor) (*raster.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grids[factor]
	if !ok {
		return nil, &suitability.MissingLayerError{Layer: factor}
	}
	return g, nil
}

func (s *MemorySource) Reference(ctx context.Context) (raster.GeoTransform, error) {
	if err := ctx.Err(); err != nil {
		return raster.GeoTransform{}, err
	}
	return s.transform, nil
}

// Output is one grid written to a MemorySink.
type Output struct {
	Grid      *raster.Grid
	Transform raster.GeoTransform
}

// MemorySink keeps written grids in memory.
type MemorySink struct {
	mu      sync.Mutex
	staged  map[string]map[string]Output
	outputs map[string]Output
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		staged:  make(map[string]map[string]Output),
		outputs: make(map[string]Output),
	}
}

func (s *MemorySink) Write(ctx context.Context, runID, name string, grid *raster.Grid, gt raster.GeoTransform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if grid == nil {
		return eris.Errorf("pipeline: memory sink: nil grid for %s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.staged[runID]
	if !ok {
		run = make(map[string]Output)
		s.staged[runID] = run
	}
	run[name] = Output{Grid: grid.Clone(), Transform: gt}
	return nil
}

func (s *MemorySink) Commit(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.staged[runID]
	if !ok {
		return eris.Errorf("pipeline: memory sink: nothing staged for run %s", runID)
	}
	for name, out := range run {
		s.outputs[name] = out
	}
	delete(s.staged, runID)
	return nil
}

func (s *MemorySink) Discard(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, runID)
	return nil
}

// Staged returns the number of grids a run has written but not committed.
func (s *MemorySink) Staged(runID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged[runID])
}

// Get returns the committed output published under name.
func (s *MemorySink) Get(name string) (Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[name]
	return out, ok
}

// Names returns the committed output names in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.outputs))
	for n := range s.outputs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of committed outputs.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outputs)
}

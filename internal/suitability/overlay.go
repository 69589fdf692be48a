package suitability

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/land-suitability/internal/raster"
)

const defaultBandRows = 256

// CombineOptions controls how the overlay is partitioned. Any partitioning
// yields the same result.
type CombineOptions struct {
	Workers  int // concurrent row bands; <= 0 uses runtime.NumCPU()
	BandRows int // rows per band; <= 0 uses 256
}

// Result is the aggregate overlay: a veto mask and the combined score grid.
type Result struct {
	Factors []Factor
	Veto    *raster.Mask
	Scores  *raster.Grid
}

// Shape returns the result dimensions.
func (r *Result) Shape() raster.Shape {
	return r.Scores.Shape()
}

// CombineCell combines one cell's factor scores. The cell is vetoed when any
// factor is NotSuitable; a vetoed cell scores 0 whatever the sum of the other
// factors.
func CombineCell(scores []float64) (total float64, vetoed bool) {
	for _, s := range scores {
		if s == float64(NotSuitable) {
			vetoed = true
		}
		total += s
	}
	if vetoed {
		return NoDataValue, true
	}
	return total, false
}

// Combine overlays the reclassified layers in reg. The registry is validated
// first and every cell must hold a valid score; on any error no result is
// returned.
func Combine(ctx context.Context, reg *Registry, opts CombineOptions) (*Result, error) {
	if reg == nil {
		return nil, eris.New("suitability: combine: nil registry")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	bandRows := opts.BandRows
	if bandRows <= 0 {
		bandRows = defaultBandRows
	}

	shape := reg.Shape()
	factors := reg.Factors()
	layers := reg.grids()
	scores, err := raster.NewGrid(shape.Rows, shape.Cols)
	if err != nil {
		return nil, eris.Wrap(err, "suitability: combine: allocate result")
	}
	veto := raster.NewMask(shape)

	nBands := (shape.Rows + bandRows - 1) / bandRows
	bandErrs := make([]error, nBands)

	zap.L().Debug("suitability: combining layers",
		zap.String("component", "suitability.overlay"),
		zap.Int("layers", len(layers)),
		zap.Stringer("shape", shape),
		zap.Int("bands", nBands),
		zap.Int("workers", workers),
	)

	var g errgroup.Group
	g.SetLimit(workers)
	for b := 0; b < nBands; b++ {
		start := b * bandRows
		end := min(start+bandRows, shape.Rows)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				bandErrs[b] = err
				return nil
			}
			bandErrs[b] = combineBand(factors, layers, scores, veto, start, end)
			return nil
		})
	}
	// The group only bounds concurrency; each goroutine records its own error
	// by index and returns nil, so Wait has nothing to report.
	_ = g.Wait()

	// Report the error from the lowest band so failures are deterministic.
	for _, err := range bandErrs {
		if err != nil {
			return nil, err
		}
	}

	return &Result{Factors: factors, Veto: veto, Scores: scores}, nil
}

// combineBand fills rows [start, end) of the output grids.
func combineBand(factors []Factor, layers []*raster.Grid, scores *raster.Grid, veto *raster.Mask, start, end int) error {
	cell := make([]float64, len(layers))
	lo, hi := start*scores.Cols, end*scores.Cols
	for i := lo; i < hi; i++ {
		for k, layer := range layers {
			v := layer.Data[i]
			if !validScoreValue(v) {
				row, col := scores.Coords(i)
				return &InvalidScoreError{Factor: factors[k], Value: v, Row: row, Col: col}
			}
			cell[k] = v
		}
		scores.Data[i], veto.Data[i] = CombineCell(cell)
	}
	return nil
}

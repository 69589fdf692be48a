package suitability

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/land-suitability/internal/raster"
)

// Reclassify maps a grid of category codes to a new grid of scores using the
// factor's rule table. The input grid is not modified. A code with no rule
// aborts the whole layer with an *UnmappedCategoryError and no grid.
func Reclassify(grid *raster.Grid, table RuleTable) (*raster.Grid, error) {
	if grid == nil {
		return nil, eris.Errorf("suitability: reclassify %s: nil grid", table.Factor)
	}
	if err := grid.Check(); err != nil {
		return nil, eris.Wrapf(err, "suitability: reclassify %s", table.Factor)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	idx := table.index()
	out := grid.Blank()
	for i, v := range grid.Data {
		code, ok := categoryCode(v)
		score, mapped := idx[code]
		if !ok || !mapped {
			row, col := grid.Coords(i)
			return nil, &UnmappedCategoryError{Factor: table.Factor, Code: v, Row: row, Col: col}
		}
		out.Data[i] = float64(score)
	}
	return out, nil
}

// ReclassifyThresholds maps a grid of continuous values to a new grid of
// scores using the factor's threshold bands. No-data cells score 0. A value
// in no band aborts the layer with an *UnmappedValueError and no grid.
func ReclassifyThresholds(grid *raster.Grid, table ThresholdTable) (*raster.Grid, error) {
	if grid == nil {
		return nil, eris.Errorf("suitability: reclassify %s: nil grid", table.Factor)
	}
	if err := grid.Check(); err != nil {
		return nil, eris.Wrapf(err, "suitability: reclassify %s", table.Factor)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	out := grid.Blank()
	for i, v := range grid.Data {
		score, ok := table.Classify(v)
		if !ok {
			row, col := grid.Coords(i)
			return nil, &UnmappedValueError{Factor: table.Factor, Value: v, Row: row, Col: col}
		}
		out.Data[i] = float64(score)
	}
	return out, nil
}

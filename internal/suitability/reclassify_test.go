package suitability

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/land-suitability/internal/raster"
)

func mustGrid(t *testing.T, rows [][]float64) *raster.Grid {
	t.Helper()
	g, err := raster.FromRows(rows)
	require.NoError(t, err)
	return g
}

func TestReclassify_LandCover(t *testing.T) {
	in := mustGrid(t, [][]float64{
		{1, 2, 3, 4},
		{5, 6, 7, 1},
	})

	out, err := Reclassify(in, avocadoTable(t, LandCover))
	require.NoError(t, err)

	assert.Equal(t, []float64{20, 10, 10, 0, 0, 10, 20, 20}, out.Data)
	assert.Equal(t, in.Shape(), out.Shape())
}

func TestReclassify_DoesNotMutateInput(t *testing.T) {
	in := mustGrid(t, [][]float64{{1, 2}, {3, 4}})
	orig := in.Clone()

	out, err := Reclassify(in, avocadoTable(t, Slope))
	require.NoError(t, err)

	assert.True(t, in.Equal(orig))
	assert.NotSame(t, in, out)
}

func TestReclassify_Idempotent(t *testing.T) {
	in := mustGrid(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	tbl := avocadoTable(t, Drainage)

	first, err := Reclassify(in, tbl)
	require.NoError(t, err)
	second, err := Reclassify(in, tbl)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestReclassify_UnmappedCode(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{name: "out of domain", value: 9},
		{name: "zero", value: 0},
		{name: "fractional", value: 2.5},
		{name: "nan", value: math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mustGrid(t, [][]float64{{1, 2}, {3, tt.value}})

			out, err := Reclassify(in, avocadoTable(t, Slope))
			require.Error(t, err)
			assert.Nil(t, out)

			var unmapped *UnmappedCategoryError
			require.True(t, errors.As(err, &unmapped))
			assert.Equal(t, Slope, unmapped.Factor)
			assert.Equal(t, 1, unmapped.Row)
			assert.Equal(t, 1, unmapped.Col)
			assert.Contains(t, err.Error(), "slope")
		})
	}
}

func TestReclassify_NilGrid(t *testing.T) {
	_, err := Reclassify(nil, avocadoTable(t, Slope))
	assert.Error(t, err)
}

func TestReclassify_InvalidTable(t *testing.T) {
	in := mustGrid(t, [][]float64{{1}})
	bad := RuleTable{Factor: Slope, Domain: Domain{Min: 1, Max: 2}, Rules: []Rule{{Codes: []int{1}, Score: HighlySuitable}}}

	_, err := Reclassify(in, bad)
	var rte *RuleTableError
	assert.True(t, errors.As(err, &rte))
}

func TestReclassify_EveryTableEveryCode(t *testing.T) {
	for _, tbl := range AvocadoTables() {
		var row []float64
		for code := tbl.Domain.Min; code <= tbl.Domain.Max; code++ {
			row = append(row, float64(code))
		}
		out, err := Reclassify(mustGrid(t, [][]float64{row}), tbl)
		require.NoError(t, err, "table %s", tbl.Factor)
		for _, v := range out.Data {
			assert.True(t, validScoreValue(v), "table %s produced %g", tbl.Factor, v)
		}
	}
}

func TestReclassifyThresholds_UnmappedValue(t *testing.T) {
	var aspect ThresholdTable
	for _, tbl := range AvocadoClimateThresholds() {
		if tbl.Factor == AspectDegrees {
			aspect = tbl
		}
	}

	out, err := ReclassifyThresholds(mustGrid(t, [][]float64{{90, 361}}), aspect)
	require.Error(t, err)
	assert.Nil(t, out)

	var unmapped *UnmappedValueError
	require.True(t, errors.As(err, &unmapped))
	assert.Equal(t, AspectDegrees, unmapped.Factor)
	assert.Equal(t, 361.0, unmapped.Value)
}

func TestReclassifyThresholds_FlatAspect(t *testing.T) {
	var aspect ThresholdTable
	for _, tbl := range AvocadoClimateThresholds() {
		if tbl.Factor == AspectDegrees {
			aspect = tbl
		}
	}

	out, err := ReclassifyThresholds(mustGrid(t, [][]float64{{-1, 90, 150}}), aspect)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 20, 0}, out.Data)
}

func TestReclassify_MalformedGrid(t *testing.T) {
	long := &raster.Grid{Rows: 1, Cols: 2, Data: []float64{1, 2, 3}}

	out, err := Reclassify(long, AvocadoTables()[0])
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "holds 3 values, want 2")

	out, err = ReclassifyThresholds(long, AvocadoClimateThresholds()[0])
	require.Error(t, err)
	assert.Nil(t, out)
}

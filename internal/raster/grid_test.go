package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	g, err := NewGrid(2, 3)
	require.NoError(t, err)
	assert.Equal(t, Shape{Rows: 2, Cols: 3}, g.Shape())
	assert.Len(t, g.Data, 6)

	_, err = NewGrid(0, 3)
	assert.Error(t, err)
	_, err = NewGrid(2, -1)
	assert.Error(t, err)
}

func TestFromRows(t *testing.T) {
	g, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 6.0, g.At(1, 2))
	assert.Equal(t, 2.0, g.At(0, 1))
	assert.Equal(t, []float64{4, 5, 6}, g.Row(1))
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has 1 columns")
}

func TestFromRows_Empty(t *testing.T) {
	_, err := FromRows(nil)
	assert.Error(t, err)
}

func TestGrid_Check(t *testing.T) {
	g, err := NewGrid(2, 2)
	require.NoError(t, err)
	require.NoError(t, g.Check())

	short := &Grid{Rows: 2, Cols: 2, Data: []float64{1, 2, 3}}
	err = short.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2x2 grid holds 3 values, want 4")

	empty := &Grid{}
	assert.ErrorContains(t, empty.Check(), "invalid grid shape 0x0")
}

func TestGrid_IndexCoordsRoundTrip(t *testing.T) {
	g, err := NewGrid(3, 4)
	require.NoError(t, err)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			rr, cc := g.Coords(g.Index(r, c))
			assert.Equal(t, r, rr)
			assert.Equal(t, c, cc)
		}
	}
}

func TestGrid_CloneIsIndependent(t *testing.T) {
	g, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	c := g.Clone()
	c.Set(0, 0, 99)

	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 99.0, c.At(0, 0))
	assert.False(t, g.Equal(c))
}

func TestGrid_SameShapeAndEqual(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2}, {3, 4}})
	b, _ := FromRows([][]float64{{1, 2}, {3, 4}})
	wide, _ := FromRows([][]float64{{1, 2, 3}})

	assert.True(t, a.SameShape(b))
	assert.True(t, a.Equal(b))
	assert.False(t, a.SameShape(wide))
	assert.False(t, a.Equal(wide))
	assert.False(t, a.SameShape(nil))
}

func TestFill(t *testing.T) {
	g, err := Fill(Shape{Rows: 2, Cols: 2}, 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7, 7}, g.Data)
}

func TestMask(t *testing.T) {
	m := NewMask(Shape{Rows: 2, Cols: 2})
	m.Data[1] = true
	m.Data[2] = true

	assert.Equal(t, 2, m.Count())
	assert.True(t, m.At(0, 1))
	assert.False(t, m.At(1, 1))
	assert.Equal(t, []float64{0, 1, 1, 0}, m.Grid().Data)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "3x5", Shape{Rows: 3, Cols: 5}.String())
	assert.Equal(t, 15, Shape{Rows: 3, Cols: 5}.Cells())
}

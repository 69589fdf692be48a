// Package raster provides in-memory numeric grids and the affine transform
// that places them on the ground.
package raster

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Shape is the row/column extent of a grid.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// String renders the shape as "<rows>x<cols>".
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Cells returns the number of cells in the shape.
func (s Shape) Cells() int {
	return s.Rows * s.Cols
}

// Grid is a row-major 2-D array of float64 values.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Errorf("raster: invalid grid shape %dx%d", rows, cols)
	}
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}, nil
}

// FromRows builds a grid from a slice of equal-length rows. The values are copied.
func FromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, eris.New("raster: empty grid")
	}
	cols := len(rows[0])
	g := &Grid{Rows: len(rows), Cols: cols, Data: make([]float64, 0, len(rows)*cols)}
	for i, row := range rows {
		if len(row) != cols {
			return nil, eris.Errorf("raster: row %d has %d columns, want %d", i, len(row), cols)
		}
		g.Data = append(g.Data, row...)
	}
	return g, nil
}

// Fill returns a grid of the given shape with every cell set to v.
func Fill(shape Shape, v float64) (*Grid, error) {
	g, err := NewGrid(shape.Rows, shape.Cols)
	if err != nil {
		return nil, err
	}
	for i := range g.Data {
		g.Data[i] = v
	}
	return g, nil
}

// Check reports a grid whose dimensions are not positive or whose Data does
// not hold exactly Rows*Cols values.
func (g *Grid) Check() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return eris.Errorf("raster: invalid grid shape %dx%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return eris.Errorf("raster: %dx%d grid holds %d values, want %d", g.Rows, g.Cols, len(g.Data), g.Rows*g.Cols)
	}
	return nil
}

// Shape returns the grid dimensions.
func (g *Grid) Shape() Shape {
	return Shape{Rows: g.Rows, Cols: g.Cols}
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.Rows == o.Rows && g.Cols == o.Cols
}

// Index converts a row/column pair to the flat offset in Data.
func (g *Grid) Index(row, col int) int {
	return row*g.Cols + col
}

// Coords converts a flat offset back to its row/column pair.
func (g *Grid) Coords(i int) (row, col int) {
	return i / g.Cols, i % g.Cols
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[g.Index(row, col)]
}

// Set writes v at (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[g.Index(row, col)] = v
}

// Row returns a view of one row. Writes through the view modify the grid.
func (g *Grid) Row(row int) []float64 {
	start := row * g.Cols
	return g.Data[start : start+g.Cols : start+g.Cols]
}

// Blank returns a zero-filled grid with the same shape as g.
func (g *Grid) Blank() *Grid {
	return &Grid{Rows: g.Rows, Cols: g.Cols, Data: make([]float64, len(g.Data))}
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := g.Blank()
	copy(out.Data, g.Data)
	return out
}

// Equal reports whether g and o have the same shape and cell values.
func (g *Grid) Equal(o *Grid) bool {
	if !g.SameShape(o) {
		return false
	}
	for i, v := range g.Data {
		if o.Data[i] != v {
			return false
		}
	}
	return true
}

// Mask is a row-major boolean grid.
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

// NewMask allocates an all-false mask with the given shape.
func NewMask(shape Shape) *Mask {
	return &Mask{Rows: shape.Rows, Cols: shape.Cols, Data: make([]bool, shape.Cells())}
}

// Shape returns the mask dimensions.
func (m *Mask) Shape() Shape {
	return Shape{Rows: m.Rows, Cols: m.Cols}
}

// At returns the flag at (row, col).
func (m *Mask) At(row, col int) bool {
	return m.Data[row*m.Cols+col]
}

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Grid converts the mask to a 0/1 numeric grid for persistence.
func (m *Mask) Grid() *Grid {
	g := &Grid{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	for i, v := range m.Data {
		if v {
			g.Data[i] = 1
		}
	}
	return g
}

package raster

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// GeoTransform is the six-term affine transform that maps pixel
// coordinates to georeferenced coordinates, in GDAL term order:
//
//	x = OriginX + col*PixelWidth + row*RotationX
//	y = OriginY + col*RotationY + row*PixelHeight
//
// The reference system is carried only as an SRID label and is never
// interpreted.
type GeoTransform struct {
	OriginX     float64 `json:"origin_x"`
	PixelWidth  float64 `json:"pixel_width"`
	RotationX   float64 `json:"rotation_x"`
	OriginY     float64 `json:"origin_y"`
	RotationY   float64 `json:"rotation_y"`
	PixelHeight float64 `json:"pixel_height"`
	SRID        int     `json:"srid,omitempty"`
}

// FromGDAL builds a GeoTransform from a GDAL-ordered coefficient array.
func FromGDAL(gt [6]float64, srid int) GeoTransform {
	return GeoTransform{
		OriginX:     gt[0],
		PixelWidth:  gt[1],
		RotationX:   gt[2],
		OriginY:     gt[3],
		RotationY:   gt[4],
		PixelHeight: gt[5],
		SRID:        srid,
	}
}

// GDAL returns the coefficients in GDAL order.
func (t GeoTransform) GDAL() [6]float64 {
	return [6]float64{t.OriginX, t.PixelWidth, t.RotationX, t.OriginY, t.RotationY, t.PixelHeight}
}

// IsZero reports whether the transform is unset.
func (t GeoTransform) IsZero() bool {
	return t.PixelWidth == 0 && t.PixelHeight == 0 && t.RotationX == 0 && t.RotationY == 0
}

// Apply maps fractional pixel coordinates to georeferenced x/y.
func (t GeoTransform) Apply(col, row float64) (x, y float64) {
	x = t.OriginX + col*t.PixelWidth + row*t.RotationX
	y = t.OriginY + col*t.RotationY + row*t.PixelHeight
	return x, y
}

// CellCenter returns the georeferenced center of cell (row, col).
func (t GeoTransform) CellCenter(row, col int) geom.Coord {
	x, y := t.Apply(float64(col)+0.5, float64(row)+0.5)
	return geom.Coord{x, y}
}

// Footprint returns the polygon covering a grid of the given shape.
func (t GeoTransform) Footprint(shape Shape) (*geom.Polygon, error) {
	if t.IsZero() {
		return nil, eris.New("raster: footprint of unset geotransform")
	}
	if shape.Rows <= 0 || shape.Cols <= 0 {
		return nil, eris.Errorf("raster: footprint of invalid shape %s", shape)
	}

	rows, cols := float64(shape.Rows), float64(shape.Cols)
	corner := func(col, row float64) geom.Coord {
		x, y := t.Apply(col, row)
		return geom.Coord{x, y}
	}
	ring := []geom.Coord{
		corner(0, 0),
		corner(cols, 0),
		corner(cols, rows),
		corner(0, rows),
		corner(0, 0),
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return nil, eris.Wrap(err, "raster: build footprint")
	}
	if t.SRID != 0 {
		poly.SetSRID(t.SRID)
	}
	return poly, nil
}

// Bounds returns the axis-aligned bounding box of the grid footprint.
func (t GeoTransform) Bounds(shape Shape) (*geom.Bounds, error) {
	poly, err := t.Footprint(shape)
	if err != nil {
		return nil, err
	}
	return poly.Bounds(), nil
}

// FootprintEWKB encodes the grid footprint as little-endian EWKB.
func (t GeoTransform) FootprintEWKB(shape Shape) ([]byte, error) {
	poly, err := t.Footprint(shape)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "raster: encode footprint")
	}
	return data, nil
}

package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPrecondition is the parent of every band-pairing failure. Callers
	// must not retry on it: the inputs themselves are inconsistent.
	ErrPrecondition = errors.New("precondition failed")

	ErrDimensionMismatch       = fmt.Errorf("%w: dimension mismatch", ErrPrecondition)
	ErrSpatialMetadataMismatch = fmt.Errorf("%w: spatial metadata mismatch", ErrPrecondition)

	// ErrSourceRead is returned when a band source is unreadable or malformed.
	ErrSourceRead = errors.New("source read error")

	ErrInvalidGrid = errors.New("invalid grid")
)

// GeoTransform is the GDAL affine pixel-to-georeference mapping:
//
//	Xgeo = t[0] + col*t[1] + row*t[2]
//	Ygeo = t[3] + col*t[4] + row*t[5]
type GeoTransform [6]float64

// Apply maps a pixel corner (col, row) to georeferenced coordinates.
func (t GeoTransform) Apply(col, row float64) (float64, float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// Metadata is the spatial description shared by a grid and anything derived from it.
type Metadata struct {
	Transform GeoTransform
	// CRS is a WKT string or an authority code such as "EPSG:32723".
	CRS string
	// NoData is the sentinel used by the source encoding. Inside a Grid every
	// no-data pixel is NaN regardless of this value.
	NoData *float64
}

// SameSpace reports whether two metadata values describe the same pixel grid.
func (m Metadata) SameSpace(o Metadata) bool {
	return m.Transform == o.Transform && m.CRS == o.CRS
}

// Grid is an immutable row-major raster of float64 values.
type Grid struct {
	height, width int
	values        []float64
	meta          Metadata
}

// NewGrid copies values into a new grid. Values equal to meta.NoData are
// stored as NaN.
func NewGrid(height, width int, values []float64, meta Metadata) (*Grid, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: non-positive shape %dx%d", ErrInvalidGrid, height, width)
	}
	if len(values) != height*width {
		return nil, fmt.Errorf("%w: %d values for shape %dx%d", ErrInvalidGrid, len(values), height, width)
	}

	data := make([]float64, len(values))
	copy(data, values)
	if meta.NoData != nil {
		nd := *meta.NoData
		for i, v := range data {
			if v == nd || (math.IsNaN(nd) && math.IsNaN(v)) {
				data[i] = math.NaN()
			}
		}
	}

	return &Grid{height: height, width: width, values: data, meta: meta}, nil
}

// NewGridFromRows builds a grid from a rectangular slice of rows.
func NewGridFromRows(rows [][]float64, meta Metadata) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidGrid)
	}
	width := len(rows[0])
	values := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidGrid, i, len(row), width)
		}
		values = append(values, row...)
	}
	return NewGrid(len(rows), width, values, meta)
}

func (g *Grid) Height() int        { return g.height }
func (g *Grid) Width() int         { return g.width }
func (g *Grid) Len() int           { return len(g.values) }
func (g *Grid) Metadata() Metadata { return g.meta }

// At returns the value at row y, column x.
func (g *Grid) At(y, x int) float64 {
	return g.values[y*g.width+x]
}

// Index returns the i-th value in row-major order.
func (g *Grid) Index(i int) float64 {
	return g.values[i]
}

// Values returns a copy of the row-major values.
func (g *Grid) Values() []float64 {
	out := make([]float64, len(g.values))
	copy(out, g.values)
	return out
}

// Rows returns a copy of the values split into rows.
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.height)
	for y := range g.height {
		rows[y] = make([]float64, g.width)
		copy(rows[y], g.values[y*g.width:(y+1)*g.width])
	}
	return rows
}

// SameShape reports whether both grids have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.height == o.height && g.width == o.width
}

// CheckPair validates that two grids can be combined pixel by pixel.
func CheckPair(a, b *Grid) error {
	if !a.SameShape(b) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, a.height, a.width, b.height, b.width)
	}
	if !a.meta.SameSpace(b.meta) {
		return fmt.Errorf("%w: transform %v crs %q vs transform %v crs %q",
			ErrSpatialMetadataMismatch, a.meta.Transform, a.meta.CRS, b.meta.Transform, b.meta.CRS)
	}
	return nil
}

// Package grid builds the ordered grid-point sequences the interpolation
// engine fills: regular meshes over a projected extent, meshes read from
// NetCDF coordinate variables, or the point layer of an existing GeoPackage.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/climategrid/internal/idw"
)

// ErrEmptyGrid is returned when an extent or coordinate set yields no points.
var ErrEmptyGrid = errors.New("grid: no grid points")

// Bounds is a planar extent in projected metres.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Validate checks that the extent is finite and not inverted.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds must be finite, got %+v", b)
		}
	}
	if b.MaxX < b.MinX || b.MaxY < b.MinY {
		return fmt.Errorf("bounds are inverted: %+v", b)
	}
	return nil
}

// BoundsOf returns the extent covering all points.
func BoundsOf(points []idw.Point) (Bounds, error) {
	if len(points) == 0 {
		return Bounds{}, ErrEmptyGrid
	}
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b, nil
}

// Grid is an ordered set of points. For a rectilinear mesh Points are
// row-major: Ys outer, Xs inner, so Points[r*Cols()+c] is (Xs[c], Ys[r]).
// Point layers have no axes and Xs and Ys are nil.
type Grid struct {
	Xs     []float64
	Ys     []float64
	Points []idw.Point
	SRSID  int32
}

// Cols returns the number of distinct X coordinates.
func (g *Grid) Cols() int { return len(g.Xs) }

// Rows returns the number of distinct Y coordinates.
func (g *Grid) Rows() int { return len(g.Ys) }

// Len returns the number of grid points.
func (g *Grid) Len() int { return len(g.Points) }

// IsRegular reports whether the points form the Cols x Rows mesh.
func (g *Grid) IsRegular() bool {
	return len(g.Xs) > 0 && len(g.Xs)*len(g.Ys) == len(g.Points)
}

// FromPoints wraps an arbitrary point sequence. The order is kept.
func FromPoints(points []idw.Point, srsID int32) (*Grid, error) {
	if len(points) == 0 {
		return nil, ErrEmptyGrid
	}
	return &Grid{Points: points, SRSID: srsID}, nil
}

// NewRegular lays out cellSize-spaced points starting at (MinX, MinY) and
// stopping before MaxX/MaxY (half-open on both axes). An extent
// narrower than one cell still yields its origin point.
func NewRegular(b Bounds, cellSize float64, srsID int32) (*Grid, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("grid: cell size must be positive, got %f", cellSize)
	}
	return FromAxes(arange(b.MinX, b.MaxX, cellSize), arange(b.MinY, b.MaxY, cellSize), srsID)
}

// FromAxes expands two coordinate axes into the row-major mesh.
func FromAxes(xs, ys []float64, srsID int32) (*Grid, error) {
	if len(xs) == 0 || len(ys) == 0 {
		return nil, ErrEmptyGrid
	}
	points := make([]idw.Point, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			points = append(points, idw.Point{X: x, Y: y})
		}
	}
	return &Grid{Xs: xs, Ys: ys, Points: points, SRSID: srsID}, nil
}

func arange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop - start) / step))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

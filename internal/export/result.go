// Package export writes interpolated grids to CSV, NetCDF, GeoPackage and
// a length-delimited protobuf stream.
package export

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/climategrid/internal/grid"
	"github.com/banshee-data/climategrid/internal/idw"
)

// Result pairs a grid with the engine output for each of its points.
type Result struct {
	Grid   *grid.Grid
	Values []idw.InterpolatedValue
}

// NewResult checks that values line up with the grid points.
func NewResult(g *grid.Grid, values []idw.InterpolatedValue) (*Result, error) {
	if g == nil {
		return nil, grid.ErrEmptyGrid
	}
	if len(values) != g.Len() {
		return nil, fmt.Errorf("export: %d values for %d grid points", len(values), g.Len())
	}
	return &Result{Grid: g, Values: values}, nil
}

// Estimates returns the estimate of every point in grid order.
func (r *Result) Estimates() []float64 {
	out := make([]float64, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.Estimate
	}
	return out
}

// Rounded returns a copy of r with estimates rounded half away from zero
// to the given number of decimals.
func (r *Result) Rounded(decimals int) *Result {
	scale := math.Pow(10, float64(decimals))
	values := make([]idw.InterpolatedValue, len(r.Values))
	for i, v := range r.Values {
		v.Estimate = math.Round(v.Estimate*scale) / scale
		values[i] = v
	}
	return &Result{Grid: r.Grid, Values: values}
}

// Summary describes a finished run.
type Summary struct {
	Count    int
	Fallback int // points that received the global mean
	Mean     float64
	Min      float64
	Max      float64
}

// Summarize computes run statistics over all estimates.
func Summarize(values []idw.InterpolatedValue) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	est := make([]float64, len(values))
	for i, v := range values {
		est[i] = v.Estimate
		if v.IsFallback() {
			s.Fallback++
		}
	}
	s.Mean = stat.Mean(est, nil)
	s.Min = floats.Min(est)
	s.Max = floats.Max(est)
	return s
}

// Trusted returns the number of points estimated from their neighbours.
func (s Summary) Trusted() int { return s.Count - s.Fallback }

func (s Summary) String() string {
	return fmt.Sprintf("%d points (%d fallback) mean=%.2f min=%.2f max=%.2f",
		s.Count, s.Fallback, s.Mean, s.Min, s.Max)
}

// Package report renders diagnostic views of an interpolated grid: a PNG
// heat map and an interactive HTML scatter chart.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/idw"
)

// ErrNotRegular is returned when a heat map is requested for a point grid.
var ErrNotRegular = errors.New("report: heat map needs a regular grid")

// gridXYZ adapts a regular result to plotter.GridXYZ. Row 0 is the
// southernmost row.
type gridXYZ struct {
	r *export.Result
}

func (g gridXYZ) Dims() (c, r int) { return g.r.Grid.Cols(), g.r.Grid.Rows() }
func (g gridXYZ) X(c int) float64  { return g.r.Grid.Xs[c] }
func (g gridXYZ) Y(r int) float64  { return g.r.Grid.Ys[r] }
func (g gridXYZ) Z(c, r int) float64 {
	return g.r.Values[r*g.r.Grid.Cols()+c].Estimate
}

// WriteHeatmapPNG draws the estimates as a heat map with the stations on
// top and writes it to w as PNG.
func WriteHeatmapPNG(w io.Writer, r *export.Result, stations []idw.Station, title string) error {
	if !r.Grid.IsRegular() {
		return ErrNotRegular
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	hm := plotter.NewHeatMap(gridXYZ{r}, palette.Heat(32, 1))
	hm.NaN = color.Transparent
	if hm.Min == hm.Max {
		hm.Min -= 0.5
		hm.Max += 0.5
	}
	p.Add(hm)

	if len(stations) > 0 {
		pts := make(plotter.XYs, len(stations))
		for i, s := range stations {
			pts[i] = plotter.XY{X: s.Position.X, Y: s.Position.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("station overlay: %w", err)
		}
		sc.GlyphStyle.Shape = draw.TriangleGlyph{}
		sc.GlyphStyle.Color = color.Black
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("stations", sc)
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(10*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render heat map: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

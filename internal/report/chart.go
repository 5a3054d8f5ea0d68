package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/idw"
)

// MaxChartPoints caps the grid points embedded in a chart; larger grids
// are sampled with a fixed stride.
const MaxChartPoints = 40000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteChartHTML renders estimates and stations as an echarts scatter plot
// coloured by value. Fallback points are drawn like the rest; the tooltip
// shows their neighbour count of 0.
func WriteChartHTML(w io.Writer, r *export.Result, stations []idw.Station, title string) error {
	stride := 1
	if n := r.Grid.Len(); n > MaxChartPoints {
		stride = (n + MaxChartPoints - 1) / MaxChartPoints
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	track := func(v float64) {
		if !math.IsNaN(v) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	data := make([]opts.ScatterData, 0, r.Grid.Len()/stride+1)
	for i := 0; i < r.Grid.Len(); i += stride {
		p, v := r.Grid.Points[i], r.Values[i]
		if math.IsNaN(v.Estimate) {
			continue
		}
		track(v.Estimate)
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, v.Estimate, v.NeighborCount}})
	}
	stationData := make([]opts.ScatterData, 0, len(stations))
	for _, s := range stations {
		if math.IsNaN(s.Value) {
			continue
		}
		track(s.Value)
		stationData = append(stationData, opts.ScatterData{Value: []interface{}{s.Position.X, s.Position.Y, s.Value}})
	}
	if lo > hi {
		lo, hi = 0, 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1000px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d stride=%d stations=%d", len(data), stride, len(stationData))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("grid", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("stations", stationData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}),
	)
	return scatter.Render(w)
}

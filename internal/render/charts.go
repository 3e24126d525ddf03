// Package render draws grids and profiles: interactive go-echarts pages for
// the dashboard and static gonum/plot PNGs for export.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/banshee-data/rutting.report/internal/grid"
)

// viridis, low to high.
var heightPalette = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ChartOptions are the page-level settings shared by every chart.
type ChartOptions struct {
	Theme      string
	AssetsHost string
}

func (o ChartOptions) init(title, height string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  title,
		Theme:      o.Theme,
		Width:      "100%",
		Height:     height,
		AssetsHost: o.AssetsHost,
	}
}

// SurfaceStride returns the smallest step that keeps a rows x cols grid
// sampled every step cells in both directions within maxPoints.
func SurfaceStride(rows, cols, maxPoints int) int {
	if maxPoints <= 0 || rows*cols <= maxPoints {
		return 1
	}
	stride := int(math.Ceil(math.Sqrt(float64(rows*cols) / float64(maxPoints))))
	for ceilDiv(rows, stride)*ceilDiv(cols, stride) > maxPoints {
		stride++
	}
	return stride
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// chartValue maps NaN to "-", which echarts draws as a gap. encoding/json
// cannot encode NaN.
func chartValue(v float64) interface{} {
	if math.IsNaN(v) {
		return "-"
	}
	return v
}

// RenderSurface writes an HTML page with a 3D surface of g, x = transID,
// y = lonID, z = height. Grids larger than maxPoints are drawn every
// stride cells.
func RenderSurface(w io.Writer, g *grid.Grid, title string, maxPoints int, o ChartOptions) error {
	stride := SurfaceStride(g.Rows(), g.Cols(), maxPoints)
	sum := grid.Summarize(g)

	data := make([]opts.Chart3DData, 0, ceilDiv(g.Rows(), stride)*ceilDiv(g.Cols(), stride))
	for r := 0; r < g.Rows(); r += stride {
		for c := 0; c < g.Cols(); c += stride {
			s := g.At(r, c)
			data = append(data, opts.Chart3DData{Value: []interface{}{s.TransID, s.LonID, chartValue(s.Height)}})
		}
	}

	surface := charts.NewSurface3D()
	surface.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(title, "640px")),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%dx%d from lonID %d, stride=%d", g.Rows(), g.Cols(), g.LonBase(), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "Transverse ID", Show: opts.Bool(true)}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Longitudinal ID", Show: opts.Bool(true)}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "height", Show: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(sum.Min),
			Max:        float32(sum.Max),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: heightPalette},
		}),
	)
	// Surface3D.AddSeries tags the series as scatter3D; draw a real surface.
	surface.AddSeries("height", data, charts.WithSeriesOpts(func(s *charts.SingleSeries) {
		s.Type = types.ChartSurface3D
	}))
	return surface.Render(w)
}

// RenderProfile writes an HTML page with the original and filtered lines
// of p. yMax fixes the top of the y axis so profiles stay comparable;
// zero or NaN leaves the axis automatic.
func RenderProfile(w io.Writer, p *grid.Profile, yMax float64, o ChartOptions) error {
	xName, title := profileLabels(p)

	positions := p.Positions()
	xs := make([]string, len(positions))
	for i, x := range positions {
		xs[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}

	yAxis := opts.YAxis{Name: "Height (mm)", NameLocation: "middle", NameGap: 40}
	if yMax > 0 && !math.IsNaN(yMax) && !math.IsInf(yMax, 0) {
		yAxis.Max = yMax
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(title, "420px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d points", p.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(yAxis),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(xs)
	for _, label := range []string{grid.FilterOriginal, grid.FilterFiltered} {
		series := p.Series(label)
		data := make([]opts.LineData, len(series))
		for i, h := range series {
			data[i] = opts.LineData{Value: chartValue(h)}
		}
		line.AddSeries(label, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line.Render(w)
}

// profileLabels returns the x axis name and title for p.
func profileLabels(p *grid.Profile) (xName, title string) {
	if p.Kind == grid.Transverse {
		return "Transverse OFFSET (mm)", fmt.Sprintf("Transverse profile at lonID %d", p.Index)
	}
	return "Longitudinal OFFSET (mm)", fmt.Sprintf("Longitudinal profile at transID %d", p.Index)
}

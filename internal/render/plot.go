package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rutting.report/internal/grid"
)

// Default PNG size.
const (
	PlotWidth  = 10 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

var seriesColors = map[string]color.Color{
	grid.FilterOriginal: color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 255},
	grid.FilterFiltered: color.RGBA{R: 0xe4, G: 0x57, B: 0x1c, A: 255},
}

// ProfilePlot builds a line plot of both series of p. NaN heights are
// left out of the lines. yMax behaves as in RenderProfile.
func ProfilePlot(p *grid.Profile, yMax float64) (*plot.Plot, error) {
	xName, title := profileLabels(p)

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = xName
	pl.Y.Label.Text = "Height (mm)"
	pl.Add(plotter.NewGrid())

	positions := p.Positions()
	for _, label := range []string{grid.FilterOriginal, grid.FilterFiltered} {
		series := p.Series(label)
		pts := make(plotter.XYs, 0, len(series))
		for i, h := range series {
			if math.IsNaN(h) {
				continue
			}
			pts = append(pts, plotter.XY{X: positions[i], Y: h})
		}
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", label, err)
		}
		l.Color = seriesColors[label]
		l.Width = vg.Points(1)
		pl.Add(l)
		pl.Legend.Add(label, l)
	}
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	if yMax > 0 && !math.IsNaN(yMax) && !math.IsInf(yMax, 0) {
		pl.Y.Max = yMax
	}
	return pl, nil
}

// WriteProfilePNG renders ProfilePlot(p, yMax) as a PNG of the given size.
func WriteProfilePNG(w io.Writer, p *grid.Profile, yMax float64, width, height vg.Length) error {
	pl, err := ProfilePlot(p, yMax)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

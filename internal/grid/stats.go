package grid

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the height distribution of a grid. NaN heights are
// skipped.
type Summary struct {
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
	LonBase int     `json:"lon_base"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
}

// Summarize computes the Summary of g.
func Summarize(g *Grid) Summary {
	s := Summary{Rows: g.rows, Cols: g.cols, LonBase: g.lonBase}

	heights := make([]float64, 0, len(g.samples))
	for _, smp := range g.samples {
		if !math.IsNaN(smp.Height) {
			heights = append(heights, smp.Height)
		}
	}
	s.Count = len(heights)
	if s.Count == 0 {
		return s
	}

	s.Min = floats.Min(heights)
	s.Max = floats.Max(heights)
	if s.Count == 1 {
		s.Mean = heights[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(heights, nil)
	return s
}

package grid

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FilterKind selects the sliding-window statistic.
type FilterKind string

const (
	FilterNone   FilterKind = "none"
	FilterMean   FilterKind = "mean"
	FilterMedian FilterKind = "median"
)

// ParseFilterKind accepts "mean", "median" or "none" (case-insensitive).
func ParseFilterKind(s string) (FilterKind, error) {
	switch k := FilterKind(strings.ToLower(strings.TrimSpace(s))); k {
	case FilterNone, FilterMean, FilterMedian:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown filter kind %q", ErrInvalidWindow, s)
	}
}

// ValidateWindow checks that size is a positive odd integer.
func ValidateWindow(size int) error {
	if size <= 0 || size%2 == 0 {
		return fmt.Errorf("%w: window size must be a positive odd integer, got %d", ErrInvalidWindow, size)
	}
	return nil
}

// Smooth applies a size x size mean or median filter centred on every cell.
// Cells past the grid edge are mirrored back into it, edge included
// (d c b a | a b c d | d c b a), so border values are not pulled toward
// zero. Missing heights (NaN) are left out of every window; a window with
// nothing but missing cells yields NaN. The result has the same shape as g.
func Smooth(g *Grid, kind FilterKind, size int) (*Grid, error) {
	if err := ValidateWindow(size); err != nil {
		return nil, err
	}

	var out *mat.Dense
	switch kind {
	case FilterNone:
		return g, nil
	case FilterMean:
		out = meanFilter(ToArray(g), size)
	case FilterMedian:
		out = medianFilter(ToArray(g), size)
	default:
		return nil, fmt.Errorf("%w: unknown filter kind %q", ErrInvalidWindow, kind)
	}
	return FromArray(g, fmt.Sprintf("%s|%s(%d)", g.key, kind, size), out)
}

// reflectIndex maps i onto [0, n) by mirroring about the edges with the
// edge sample repeated. Indices further out than one grid length keep
// bouncing with period 2n.
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// present moves the non-NaN values of w to its front and returns them.
func present(w []float64) []float64 {
	n := 0
	for _, v := range w {
		if !math.IsNaN(v) {
			w[n] = v
			n++
		}
	}
	return w[:n]
}

func hasMissing(m *mat.Dense) bool {
	rows, _ := m.Dims()
	for r := 0; r < rows; r++ {
		for _, v := range m.RawRowView(r) {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// meanFilter runs the separable uniform filter: a 1D window mean along each
// row, then along each column of the intermediate result. Grids with
// missing cells take the full-window mean of the cells present instead.
func meanFilter(src *mat.Dense, size int) *mat.Dense {
	if hasMissing(src) {
		return windowFilter(src, size, func(w []float64) float64 {
			if w = present(w); len(w) == 0 {
				return math.NaN()
			}
			return stat.Mean(w, nil)
		})
	}

	rows, cols := src.Dims()
	half := size / 2
	window := make([]float64, size)

	tmp := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		row, dst := src.RawRowView(r), tmp.RawRowView(r)
		for c := range dst {
			for k := -half; k <= half; k++ {
				window[k+half] = row[reflectIndex(c+k, cols)]
			}
			dst[c] = stat.Mean(window, nil)
		}
	}

	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, tmp)
		for r := 0; r < rows; r++ {
			for k := -half; k <= half; k++ {
				window[k+half] = col[reflectIndex(r+k, rows)]
			}
			out.Set(r, c, stat.Mean(window, nil))
		}
	}
	return out
}

// medianFilter takes the median of the cells present in the size x size
// window around each cell. With no gaps size*size is odd and the median
// is a sample value; an even count averages the middle pair.
func medianFilter(src *mat.Dense, size int) *mat.Dense {
	return windowFilter(src, size, func(w []float64) float64 {
		w = present(w)
		n := len(w)
		if n == 0 {
			return math.NaN()
		}
		sort.Float64s(w)
		if n%2 == 1 {
			return stat.Quantile(0.5, stat.Empirical, w, nil)
		}
		return (w[n/2-1] + w[n/2]) / 2
	})
}

// windowFilter sets every cell of the result to reduce applied to its
// reflected size x size window. Rows are split across workers; each writes
// only its own rows of the result. reduce may reorder its argument.
func windowFilter(src *mat.Dense, size int, reduce func([]float64) float64) *mat.Dense {
	rows, cols := src.Dims()
	half := size / 2
	out := mat.NewDense(rows, cols, nil)

	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers

	var eg errgroup.Group
	for start := 0; start < rows; start += chunk {
		end := start + chunk
		if end > rows {
			end = rows
		}
		eg.Go(func() error {
			window := make([]float64, size*size)
			for r := start; r < end; r++ {
				dst := out.RawRowView(r)
				for c := range dst {
					n := 0
					for dr := -half; dr <= half; dr++ {
						row := src.RawRowView(reflectIndex(r+dr, rows))
						for dc := -half; dc <= half; dc++ {
							window[n] = row[reflectIndex(c+dc, cols)]
							n++
						}
					}
					dst[c] = reduce(window[:n])
				}
			}
			return nil
		})
	}
	// Workers never fail.
	_ = eg.Wait()
	return out
}

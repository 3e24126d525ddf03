// Package grid holds a rutting scan as a dense longitudinal x transverse
// grid of height samples and the transforms applied to it: outlier
// clamping, reflected sliding-window smoothing and profile extraction.
//
// A Grid is immutable once built. Every transform returns a new Grid that
// shares the source's sample identity (id, indices and offsets) and
// carries its own heights.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Column names of the long-form sample table, in export order.
const (
	ColumnID          = "id"
	ColumnLonID       = "lonID"
	ColumnLonOffset   = "lonOFFSET"
	ColumnTransID     = "transID"
	ColumnTransOffset = "transOFFSET"
	ColumnHeight      = "height"
	ColumnFilter      = "filter"
)

// SampleColumns is the column set every data source must return.
var SampleColumns = []string{
	ColumnID, ColumnLonID, ColumnLonOffset, ColumnTransID, ColumnTransOffset, ColumnHeight,
}

// Sample is one height measurement of the scan.
type Sample struct {
	ID          int64   `json:"id"`
	LonID       int     `json:"lon_id"`
	LonOffset   float64 `json:"lon_offset"`
	TransID     int     `json:"trans_id"`
	TransOffset float64 `json:"trans_offset"`
	Height      float64 `json:"height"`
}

// Range selects the longitudinal rows to load. To < 0 leaves the range
// open-ended.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// AllRows selects the whole scan.
var AllRows = Range{From: 0, To: -1}

// Validate checks that the range is well formed.
func (r Range) Validate() error {
	if r.From < 0 {
		return fmt.Errorf("%w: range start %d is negative", ErrIndexOutOfRange, r.From)
	}
	if r.To >= 0 && r.To < r.From {
		return fmt.Errorf("%w: range end %d before start %d", ErrIndexOutOfRange, r.To, r.From)
	}
	return nil
}

func (r Range) String() string {
	if r.To < 0 {
		return fmt.Sprintf("%d:", r.From)
	}
	return fmt.Sprintf("%d:%d", r.From, r.To)
}

// Source supplies samples in row-major order (lonID slowest, transID
// fastest). Name identifies the source for memoization.
type Source interface {
	Samples(ctx context.Context, r Range) ([]Sample, error)
	Name() string
}

// ValidateColumns checks that cols names exactly the sample schema, in any
// order and ignoring case.
func ValidateColumns(cols []string) error {
	if len(cols) != len(SampleColumns) {
		return fmt.Errorf("%w: expected columns %v, got %v", ErrDataSource, SampleColumns, cols)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[strings.ToLower(c)] = true
	}
	for _, want := range SampleColumns {
		if !seen[strings.ToLower(want)] {
			return fmt.Errorf("%w: missing column %q in %v", ErrDataSource, want, cols)
		}
	}
	return nil
}

// Grid is a dense rows x cols arrangement of samples. Row r holds
// lonID = LonBase()+r and column c holds transID = c.
type Grid struct {
	key     string
	samples []Sample
	rows    int
	cols    int
	lonBase int
}

// NewGrid validates that samples form a complete row-major grid and wraps
// them. key identifies the grid for memoization; it should change whenever
// the samples could.
func NewGrid(key string, samples []Sample) (*Grid, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrShape)
	}

	maxTrans := -1
	for _, s := range samples {
		if s.TransID < 0 {
			return nil, fmt.Errorf("%w: sample %d has negative transID %d", ErrShape, s.ID, s.TransID)
		}
		if s.TransID > maxTrans {
			maxTrans = s.TransID
		}
	}
	cols := maxTrans + 1
	if len(samples)%cols != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a multiple of %d transverse columns", ErrShape, len(samples), cols)
	}

	lonBase := samples[0].LonID
	for i, s := range samples {
		wantLon := lonBase + i/cols
		wantTrans := i % cols
		if s.LonID != wantLon || s.TransID != wantTrans {
			return nil, fmt.Errorf("%w: sample %d at position %d has (lonID=%d, transID=%d), want (%d, %d)",
				ErrShape, s.ID, i, s.LonID, s.TransID, wantLon, wantTrans)
		}
	}

	owned := make([]Sample, len(samples))
	copy(owned, samples)
	return &Grid{
		key:     key,
		samples: owned,
		rows:    len(samples) / cols,
		cols:    cols,
		lonBase: lonBase,
	}, nil
}

// Load reads r from src and builds a grid from it. Failures of the source
// itself are reported as ErrDataSource; a malformed table as ErrShape.
func Load(ctx context.Context, src Source, r Range) (*Grid, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	samples, err := src.Samples(ctx, r)
	if err != nil {
		if errors.Is(err, ErrDataSource) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDataSource, src.Name(), err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s returned no samples for range %s", ErrDataSource, src.Name(), r)
	}
	return NewGrid(src.Name()+"@"+r.String(), samples)
}

// Key identifies the grid's contents for memoization.
func (g *Grid) Key() string { return g.key }

// Rows returns the number of longitudinal rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of transverse columns.
func (g *Grid) Cols() int { return g.cols }

// LonBase returns the lonID of the first row.
func (g *Grid) LonBase() int { return g.lonBase }

// Len returns the number of samples.
func (g *Grid) Len() int { return len(g.samples) }

// At returns the sample at row r, column c.
func (g *Grid) At(r, c int) Sample { return g.samples[r*g.cols+c] }

// Height returns the height at row r, column c.
func (g *Grid) Height(r, c int) float64 { return g.samples[r*g.cols+c].Height }

// Samples returns a copy of the samples in row-major order.
func (g *Grid) Samples() []Sample {
	out := make([]Sample, len(g.samples))
	copy(out, g.samples)
	return out
}

// Heights returns a copy of the heights in row-major order.
func (g *Grid) Heights() []float64 {
	out := make([]float64, len(g.samples))
	for i, s := range g.samples {
		out[i] = s.Height
	}
	return out
}

// SameShape reports whether g and o have identical rows, cols and lonBase.
func (g *Grid) SameShape(o *Grid) bool {
	return g.rows == o.rows && g.cols == o.cols && g.lonBase == o.lonBase
}

// withHeights returns a grid with g's sample identity and the given
// row-major heights. len(heights) must equal g.Len().
func (g *Grid) withHeights(key string, heights []float64) *Grid {
	samples := make([]Sample, len(g.samples))
	copy(samples, g.samples)
	for i := range samples {
		samples[i].Height = heights[i]
	}
	return &Grid{
		key:     key,
		samples: samples,
		rows:    g.rows,
		cols:    g.cols,
		lonBase: g.lonBase,
	}
}

// ToArray returns the heights as a dense rows x cols matrix.
func ToArray(g *Grid) *mat.Dense {
	return mat.NewDense(g.rows, g.cols, g.Heights())
}

// FromArray builds a grid with g's sample identity and heights taken from
// m. It fails with ErrShapeMismatch when m is not g.Rows() x g.Cols().
func FromArray(g *Grid, key string, m mat.Matrix) (*Grid, error) {
	r, c := m.Dims()
	if r != g.rows || c != g.cols {
		return nil, fmt.Errorf("%w: array is %dx%d, grid is %dx%d", ErrShapeMismatch, r, c, g.rows, g.cols)
	}
	heights := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			heights[i*c+j] = m.At(i, j)
		}
	}
	return g.withHeights(key, heights), nil
}

package grid

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeSamples builds row-major samples for heights[r][c], starting at
// lonID lonBase. Offsets are 10mm longitudinally and 1mm transversely.
func makeSamples(lonBase int, heights [][]float64) []Sample {
	var out []Sample
	id := int64(1)
	for r, row := range heights {
		for c, h := range row {
			out = append(out, Sample{
				ID:          id,
				LonID:       lonBase + r,
				LonOffset:   float64(lonBase+r) * 10,
				TransID:     c,
				TransOffset: float64(c),
				Height:      h,
			})
			id++
		}
	}
	return out
}

func makeGrid(t *testing.T, heights [][]float64) *Grid {
	t.Helper()
	g, err := NewGrid("test", makeSamples(0, heights))
	require.NoError(t, err)
	return g
}

// rampGrid returns a rows x cols grid with height r*cols+c.
func rampGrid(t *testing.T, rows, cols int) *Grid {
	t.Helper()
	h := make([][]float64, rows)
	for r := range h {
		h[r] = make([]float64, cols)
		for c := range h[r] {
			h[r][c] = float64(r*cols + c)
		}
	}
	return makeGrid(t, h)
}

func heightMatrix(g *Grid) [][]float64 {
	out := make([][]float64, g.Rows())
	for r := range out {
		out[r] = make([]float64, g.Cols())
		for c := range out[r] {
			out[r][c] = g.Height(r, c)
		}
	}
	return out
}

// fakeSource serves fixed samples and counts calls.
type fakeSource struct {
	name    string
	samples []Sample
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Samples(_ context.Context, r Range) ([]Sample, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []Sample
	for _, s := range f.samples {
		if s.LonID < r.From || (r.To >= 0 && s.LonID > r.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

var errUnreachable = fmt.Errorf("dial tcp: connection refused")

package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectIndex(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 4, 0},
		{3, 4, 3},
		{-1, 4, 0},
		{-2, 4, 1},
		{4, 4, 3},
		{5, 4, 2},
		{-1, 1, 0},
		{3, 1, 0},
		// wider than the grid: keeps bouncing
		{-4, 3, 2},
		{7, 3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reflectIndex(tt.i, tt.n), "reflectIndex(%d, %d)", tt.i, tt.n)
	}
}

func TestSmooth_MeanExample(t *testing.T) {
	g := makeGrid(t, [][]float64{{1, 1, 1}, {1, 9, 1}, {1, 1, 1}})

	out, err := Smooth(g, FilterMean, 3)
	require.NoError(t, err)
	assert.InDelta(t, 17.0/9.0, out.Height(1, 1), 1e-12)

	// The reflected corner window holds the centre once and eight ones.
	assert.InDelta(t, 17.0/9.0, out.Height(0, 0), 1e-12)
	// Edge cell (0,1): rows {0,0,1} x cols {0,1,2}, centre appears once.
	assert.InDelta(t, 17.0/9.0, out.Height(0, 1), 1e-12)
}

func TestSmooth_MeanConstantEdges(t *testing.T) {
	// Reflection keeps a constant field constant, including the borders.
	h := make([][]float64, 5)
	for r := range h {
		h[r] = []float64{4, 4, 4, 4, 4, 4}
	}
	g := makeGrid(t, h)

	for _, size := range []int{3, 5, 7, 9} {
		out, err := Smooth(g, FilterMean, size)
		require.NoError(t, err)
		for _, v := range out.Heights() {
			assert.InDelta(t, 4.0, v, 1e-12)
		}
	}
}

func TestSmooth_MeanMatchesDirectWindow(t *testing.T) {
	g := rampGrid(t, 5, 4)
	out, err := Smooth(g, FilterMean, 3)
	require.NoError(t, err)

	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			sum := 0.0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					sum += g.Height(reflectIndex(r+dr, g.Rows()), reflectIndex(c+dc, g.Cols()))
				}
			}
			assert.InDelta(t, sum/9, out.Height(r, c), 1e-9, "cell (%d,%d)", r, c)
		}
	}
}

func TestSmooth_Median(t *testing.T) {
	g := makeGrid(t, [][]float64{
		{1, 1, 1, 1},
		{1, 50, 1, 1},
		{1, 1, 1, -40},
	})

	out, err := Smooth(g, FilterMedian, 3)
	require.NoError(t, err)
	for _, v := range out.Heights() {
		assert.Equal(t, 1.0, v)
	}
}

func TestSmooth_MedianEdgeReflection(t *testing.T) {
	// Column 0 row 0 window after reflection: rows {0,0,1}, cols {0,0,1}
	// -> values 0,0,1,0,0,1,4,4,5 sorted 0,0,0,0,1,1,4,4,5 -> median 1.
	g := makeGrid(t, [][]float64{{0, 1, 2}, {4, 5, 6}})
	out, err := Smooth(g, FilterMedian, 3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Height(0, 0))
}

func TestSmooth_WindowOneIsIdentity(t *testing.T) {
	g := makeGrid(t, [][]float64{{1.5, -2.25, 3}, {7, 0.1, 9}})
	for _, kind := range []FilterKind{FilterMean, FilterMedian} {
		out, err := Smooth(g, kind, 1)
		require.NoError(t, err)
		assert.Equal(t, g.Heights(), out.Heights(), "kind %s", kind)
	}
}

func TestSmooth_PreservesShape(t *testing.T) {
	g := rampGrid(t, 7, 11)
	for _, kind := range []FilterKind{FilterMean, FilterMedian} {
		for _, size := range []int{1, 3, 5, 9, 15} {
			out, err := Smooth(g, kind, size)
			require.NoError(t, err)
			assert.True(t, out.SameShape(g))
			assert.Equal(t, g.At(3, 4).ID, out.At(3, 4).ID)
		}
	}
}

func TestSmooth_Deterministic(t *testing.T) {
	g := rampGrid(t, 40, 9)
	a, err := Smooth(g, FilterMedian, 5)
	require.NoError(t, err)
	b, err := Smooth(g, FilterMedian, 5)
	require.NoError(t, err)
	assert.Equal(t, a.Heights(), b.Heights())
}

func TestSmooth_InvalidWindow(t *testing.T) {
	g := rampGrid(t, 3, 3)
	for _, size := range []int{0, -1, -3, 2, 4} {
		_, err := Smooth(g, FilterMean, size)
		assert.ErrorIs(t, err, ErrInvalidWindow, "size %d", size)
	}
	_, err := Smooth(g, FilterKind("gaussian"), 3)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestParseFilterKind(t *testing.T) {
	k, err := ParseFilterKind(" Median ")
	require.NoError(t, err)
	assert.Equal(t, FilterMedian, k)

	_, err = ParseFilterKind("max")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSmooth_SkipsMissingHeights(t *testing.T) {
	nan := math.NaN()
	g := makeGrid(t, [][]float64{
		{1, 2, 3},
		{4, nan, 6},
		{7, 8, 9},
	})

	tests := []struct {
		kind   FilterKind
		centre float64
		corner float64
	}{
		// Centre window holds the eight present values 1..9 without 5.
		{FilterMedian, 5, 1.5},
		{FilterMean, 5, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			out, err := Smooth(g, tt.kind, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.centre, out.Height(1, 1))
			// Corner window after reflection: 1,1,2,1,1,2,4,4 and the gap.
			assert.Equal(t, tt.corner, out.Height(0, 0))
			assert.Equal(t, g.At(1, 1).ID, out.At(1, 1).ID)
		})
	}
}

func TestSmooth_AllMissingWindow(t *testing.T) {
	g := makeGrid(t, [][]float64{{math.NaN()}})
	for _, kind := range []FilterKind{FilterMean, FilterMedian} {
		out, err := Smooth(g, kind, 3)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(out.Height(0, 0)), kind)
	}
}

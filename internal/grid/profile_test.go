package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTransverse(t *testing.T) {
	orig := makeGrid(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	filtered, err := Clamp(orig, 2, 5)
	require.NoError(t, err)

	p, err := ExtractTransverse(orig, filtered, 1)
	require.NoError(t, err)

	want := []ProfileRow{
		{ID: 4, LonID: 1, LonOffset: 10, TransID: 0, TransOffset: 0, Filter: FilterOriginal, Height: 4},
		{ID: 5, LonID: 1, LonOffset: 10, TransID: 1, TransOffset: 1, Filter: FilterOriginal, Height: 5},
		{ID: 6, LonID: 1, LonOffset: 10, TransID: 2, TransOffset: 2, Filter: FilterOriginal, Height: 6},
		{ID: 4, LonID: 1, LonOffset: 10, TransID: 0, TransOffset: 0, Filter: FilterFiltered, Height: 4},
		{ID: 5, LonID: 1, LonOffset: 10, TransID: 1, TransOffset: 1, Filter: FilterFiltered, Height: 5},
		{ID: 6, LonID: 1, LonOffset: 10, TransID: 2, TransOffset: 2, Filter: FilterFiltered, Height: 5},
	}
	if diff := cmp.Diff(want, p.Rows); diff != "" {
		t.Errorf("transverse profile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Transverse, p.Kind)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []float64{4, 5, 5}, p.Series(FilterFiltered))
	assert.Equal(t, []float64{0, 1, 2}, p.Positions())
}

func TestExtractTransverse_EveryTransIDOncePerFilter(t *testing.T) {
	orig := rampGrid(t, 4, 9)
	filtered, err := Smooth(orig, FilterMean, 3)
	require.NoError(t, err)

	for lon := 0; lon < orig.Rows(); lon++ {
		p, err := ExtractTransverse(orig, filtered, lon)
		require.NoError(t, err)
		require.Len(t, p.Rows, 2*orig.Cols())

		seen := map[string]map[int]int{FilterOriginal: {}, FilterFiltered: {}}
		for _, r := range p.Rows {
			assert.Equal(t, lon, r.LonID)
			seen[r.Filter][r.TransID]++
		}
		for _, label := range []string{FilterOriginal, FilterFiltered} {
			for c := 0; c < orig.Cols(); c++ {
				assert.Equal(t, 1, seen[label][c], "filter %s transID %d", label, c)
			}
		}
	}
}

func TestExtractLongitudinal(t *testing.T) {
	orig, err := NewGrid("test", makeSamples(20, [][]float64{{1, 2}, {3, 4}, {5, 6}}))
	require.NoError(t, err)
	filtered, err := Smooth(orig, FilterMean, 1)
	require.NoError(t, err)

	p, err := ExtractLongitudinal(orig, filtered, 1)
	require.NoError(t, err)
	require.Len(t, p.Rows, 6)
	assert.Equal(t, []float64{2, 4, 6}, p.Series(FilterOriginal))
	assert.Equal(t, []float64{2, 4, 6}, p.Series(FilterFiltered))
	assert.Equal(t, []float64{200, 210, 220}, p.Positions())
	for i, r := range p.Rows[:3] {
		assert.Equal(t, 20+i, r.LonID)
		assert.Equal(t, 1, r.TransID)
	}
}

func TestExtract_IndexOutOfRange(t *testing.T) {
	orig := rampGrid(t, 3, 4)

	_, err := ExtractLongitudinal(orig, orig, 4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = ExtractLongitudinal(orig, orig, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = ExtractTransverse(orig, orig, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	based, err := NewGrid("based", makeSamples(10, [][]float64{{1}, {2}}))
	require.NoError(t, err)
	_, err = ExtractTransverse(based, based, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = ExtractTransverse(based, based, 11)
	assert.NoError(t, err)
}

func TestExtract_ShapeMismatch(t *testing.T) {
	a := rampGrid(t, 3, 4)
	b := rampGrid(t, 4, 3)

	_, err := ExtractTransverse(a, b, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = ExtractLongitudinal(a, b, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Extract(a, nil, Transverse, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestParseProfileKind(t *testing.T) {
	for in, want := range map[string]ProfileKind{
		"transverse": Transverse, "TRANS": Transverse, "longitudinal": Longitudinal, "lon": Longitudinal,
	} {
		got, err := ParseProfileKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseProfileKind("diagonal")
	assert.Error(t, err)
}

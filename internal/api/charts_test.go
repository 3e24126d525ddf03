package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/testutil"
)

func TestSurfaceChart(t *testing.T) {
	e := newTestEnv(t)
	c := e.login(t)

	rec := e.get("/charts/surface", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Original surface")
	assert.Contains(t, body, `"type":"surface"`)
	assert.Contains(t, body, "stride=1")

	rec = e.get("/charts/surface?filtered=1&max_points=4", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body = rec.Body.String()
	assert.Contains(t, body, "Filtered surface (median(3))")
	assert.Contains(t, body, "stride=3")
}

func TestSurfaceChart_IgnoresBadMaxPoints(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/charts/surface?max_points=banana", e.login(t))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "stride=1")
}

func TestProfileChart(t *testing.T) {
	e := newTestEnv(t)
	c := e.login(t)

	rec := e.get("/charts/profile?kind=transverse&index=2", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "Transverse profile at lonID 2")

	rec = e.get("/charts/profile?kind=lon&index=3", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "Longitudinal profile at transID 3")

	// No index falls back to the session's line.
	rec = e.get("/charts/profile", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "Transverse profile at lonID 0")
}

func TestProfileEndpoints_BadRequests(t *testing.T) {
	e := newTestEnv(t)
	c := e.login(t)

	for _, path := range []string{"/charts/profile", "/api/profile.csv", "/plots/profile.png"} {
		for _, query := range []string{
			"?kind=longitudinal&index=4",
			"?kind=transverse&index=5",
			"?kind=transverse&index=-1",
			"?kind=diagonal&index=0",
			"?kind=transverse&index=two",
		} {
			rec := e.get(path+query, c)
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
			assert.Contains(t, rec.Body.String(), "profile index out of range", path+query)
		}
	}
}

func TestProfileCSV(t *testing.T) {
	e := newTestEnv(t)
	c := e.login(t)

	rec := e.get("/api/profile.csv?kind=transverse&index=2", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="transProfile_scan_2.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := grid.ReadProfileCSV(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 2*testCols)

	p := &grid.Profile{Kind: grid.Transverse, Index: 2, Rows: rows}
	if diff := cmp.Diff([]float64{8, 9, 10, 11}, p.Series(grid.FilterOriginal)); diff != "" {
		t.Errorf("original series mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, p.Series(grid.FilterFiltered), testCols)
	for i, r := range rows {
		assert.Equal(t, 2, r.LonID)
		assert.Equal(t, i%testCols, r.TransID)
	}

	rec = e.get("/api/profile.csv?kind=longitudinal&index=1", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, `attachment; filename="lonProfile_1_0_to_4.csv"`, rec.Header().Get("Content-Disposition"))
	rows, err = grid.ReadProfileCSV(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, rows, 2*testRows)
}

func TestGridCSV(t *testing.T) {
	e := newTestEnv(t)
	c := e.login(t)
	rec := e.postFilterJSON(`{"clamp_enabled": true, "lower": 2, "upper": 10, "kind": "none"}`, c)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.get("/api/grid.csv", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, `attachment; filename="grid_0_to_4_original.csv"`, rec.Header().Get("Content-Disposition"))
	samples, err := grid.ReadSamplesCSV(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, samples, testRows*testCols)
	assert.Equal(t, 19.0, samples[len(samples)-1].Height)

	rec = e.get("/api/grid.csv?filtered=1", c)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, `attachment; filename="grid_0_to_4_filtered.csv"`, rec.Header().Get("Content-Disposition"))
	samples, err = grid.ReadSamplesCSV(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, samples, testRows*testCols)
	assert.Equal(t, 2.0, samples[0].Height)
	assert.Equal(t, 10.0, samples[len(samples)-1].Height)
}

func TestProfilePNG(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/plots/profile.png?kind=longitudinal&index=0", e.login(t))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="lonProfile_0_0_to_4.png"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewFormRequest creates a test request with an url-encoded form body.
func NewFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// HeightFunc gives the height of the cell at (lonID, transID).
type HeightFunc func(lonID, transID int) float64

// Ramp is a HeightFunc whose heights increase by one per cell in
// row-major order.
func Ramp(cols int) HeightFunc {
	return func(lon, trans int) float64 { return float64(lon*cols + trans) }
}

// SamplesCSV renders a rows x cols long-form scan as CSV text, one line
// per cell in lonID then transID order. Offsets are 10 mm per lonID and
// 1 mm per transID.
func SamplesCSV(rows, cols int, height HeightFunc) string {
	var b strings.Builder
	b.WriteString("id,lonID,lonOFFSET,transID,transOFFSET,height\n")
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fmt.Fprintf(&b, "%d,%d,%s,%d,%s,%s\n",
				r*cols+c, r, formatFloat(float64(r)*10), c, formatFloat(float64(c)), formatFloat(height(r, c)))
		}
	}
	return b.String()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteTempFile writes content to name inside a fresh temp dir and
// returns the full path.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

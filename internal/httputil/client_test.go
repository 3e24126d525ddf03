package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type health struct {
	Status string `json:"status"`
}

func TestGetJSON_OK(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().AddResponse(http.StatusOK, `{"status":"ok"}`)
	var h health
	require.NoError(t, GetJSON(context.Background(), m, "http://x/health", &h))
	assert.Equal(t, "ok", h.Status)
	require.Equal(t, 1, m.RequestCount())
	assert.Equal(t, "application/json", m.Requests[0].Header.Get("Accept"))
}

func TestGetJSON_ServerError(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().AddResponse(http.StatusServiceUnavailable, `{"error":"data source unavailable"}`)
	err := GetJSON(context.Background(), m, "http://x/health", &health{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "data source unavailable")
}

func TestGetJSON_PlainErrorBody(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().AddResponse(http.StatusNotFound, "404 page not found")
	err := GetJSON(context.Background(), m, "http://x/nope", &health{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestGetJSON_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	m := NewMockHTTPClient().AddErrorResponse(boom)
	err := GetJSON(context.Background(), m, "http://x/health", &health{})
	assert.ErrorIs(t, err, boom)
}

func TestGetJSON_BadJSON(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().AddResponse(http.StatusOK, `{"status":`)
	assert.Error(t, GetJSON(context.Background(), m, "http://x/health", &health{}))
}

func TestGetJSON_RealClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, health{Status: "ok"})
	}))
	defer srv.Close()

	var h health
	require.NoError(t, GetJSON(context.Background(), srv.Client(), srv.URL+"/health", &h))
	assert.Equal(t, "ok", h.Status)
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := m.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

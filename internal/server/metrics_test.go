package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestMetricsProxyForwardsExporterOutput(t *testing.T) {
	var requested string
	proxy := &metricsProxy{
		port: func() int { return 9191 },
		client: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			requested = req.URL.String()
			resp := &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("grading_batches_total 2\n")),
				Header:     make(http.Header),
			}
			resp.Header.Set("Connection", "close")
			return resp, nil
		})},
	}

	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://127.0.0.1:9191/metrics", requested)
	require.Equal(t, prometheusContentType, rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Connection"))
	require.Contains(t, rec.Body.String(), "grading_batches_total")
}

func TestMetricsProxyWithoutExporter(t *testing.T) {
	proxy := &metricsProxy{port: func() int { return 0 }}

	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
}

func TestMetricsProxyExporterDown(t *testing.T) {
	proxy := &metricsProxy{
		port: func() int { return 9191 },
		client: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
	}

	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

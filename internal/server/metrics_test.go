package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/searchprobe/searchprobe/internal/errors"
	"github.com/searchprobe/searchprobe/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stubExporter(t *testing.T, transport roundTripFunc) {
	t.Helper()
	originalClient := metricsProxyClient
	originalExporter := observability.PrometheusExporter
	metricsProxyClient = &http.Client{Transport: transport}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":9090")
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		observability.PrometheusExporter = originalExporter
	})
}

func TestMetricsHandlerProxiesPrometheusOutput(t *testing.T) {
	var forwardedAccept string
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		forwardedAccept = req.Header.Get("Accept")
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("# HELP searchprobe_searches_total Searches\nsearchprobe_searches_total 1\n")),
			Header:     make(http.Header),
		}
		resp.Header.Set("Connection", "keep-alive")
		return resp, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prometheusContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Equal(t, "text/plain", forwardedAccept)
	assert.Contains(t, rec.Body.String(), "searchprobe_searches_total 1")
}

func TestMetricsHandlerExporterUnreachable(t *testing.T) {
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeExternalService, body.Error.Code)
	assert.Equal(t, "connection refused", body.Error.Details["original_error"])
}

func TestProxyErrorKeepsCodeAndAddsTarget(t *testing.T) {
	envelope := proxyError(apperrors.NewInternalError("Unable to construct metrics request"), "http://127.0.0.1:9090/metrics", errors.New("bad url"))

	assert.Equal(t, apperrors.CodeInternal, envelope.Code)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatusFromEnvelope(envelope))
	assert.Equal(t, "http://127.0.0.1:9090/metrics", envelope.Context["metrics_url"])
	assert.Equal(t, "bad url", envelope.Context["original_error"])
}

func TestMetricsHandlerReturnsServiceUnavailableWithoutExporter(t *testing.T) {
	original := observability.PrometheusExporter
	observability.PrometheusExporter = nil
	t.Cleanup(func() { observability.PrometheusExporter = original })

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
}

package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/searchprobe/searchprobe/internal/errors"
	"github.com/searchprobe/searchprobe/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

// metricsFallbackPort is used when the exporter has not reported its port.
var metricsFallbackPort = 9090

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// hopByHopHeaders are not copied from the exporter response.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// SetMetricsFallbackPort sets the exporter port assumed before the exporter reports one.
func SetMetricsFallbackPort(port int) {
	if port > 0 {
		metricsFallbackPort = port
	}
}

func exporterURL() string {
	port := observability.GetMetricsPort()
	if port == 0 {
		port = metricsFallbackPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

// MetricsHandler serves the exporter's Prometheus output on the main listener so a
// single port carries the session API and the scrape endpoint.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Metrics exporter not initialized"))
		return
	}

	target := exporterURL()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, proxyError(apperrors.NewInternalError("Unable to construct metrics request"), target, err))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, proxyError(errors.NewErrorEnvelope(apperrors.CodeExternalService, "Prometheus exporter unavailable"), target, err))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // body fully consumed below

	for key, values := range resp.Header {
		if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusContentType)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}

func proxyError(envelope *errors.ErrorEnvelope, target string, err error) *errors.ErrorEnvelope {
	annotated, ctxErr := envelope.WithContext(map[string]interface{}{
		"metrics_url":    target,
		"original_error": err.Error(),
	})
	if ctxErr != nil {
		return envelope
	}
	return annotated
}

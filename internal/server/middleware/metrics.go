package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/observability"
)

// statusRecorder captures the status code and body size a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// fallbackRoutes maps raw paths to a bounded label set when no chi pattern matched.
var fallbackRoutes = []struct {
	prefix  string
	exact   bool
	pattern string
}{
	{prefix: "/health", pattern: "/health/*"},
	{prefix: "/api/vendors/", pattern: "/api/vendors/{index}/*"},
	{prefix: "/api/search", exact: true, pattern: "/api/search"},
	{prefix: "/api/state", exact: true, pattern: "/api/state"},
	{prefix: "/api/feedback", exact: true, pattern: "/api/feedback"},
	{prefix: "/api/feedback/draft", exact: true, pattern: "/api/feedback/draft"},
	{prefix: "/version", exact: true, pattern: "/version"},
	{prefix: "/metrics", exact: true, pattern: "/metrics"},
	{prefix: "/admin/signal", exact: true, pattern: "/admin/signal"},
	{prefix: "/", exact: true, pattern: "/"},
}

// getEndpointPattern returns a low-cardinality endpoint label for r.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	for _, route := range fallbackRoutes {
		if route.exact && path == route.prefix {
			return route.pattern
		}
		if !route.exact && strings.HasPrefix(path, route.prefix) {
			return route.pattern
		}
	}
	return "/unknown"
}

func errorType(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return ""
	}
}

// requestRecord is one finished request as seen by the metrics middleware.
type requestRecord struct {
	method       string
	path         string
	endpoint     string
	status       int
	duration     time.Duration
	requestSize  int64
	responseSize int64
	requestID    string
	sessionID    string
}

func (rec requestRecord) emit() {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	labels := map[string]string{
		"method":   rec.method,
		"endpoint": rec.endpoint,
		"status":   strconv.Itoa(rec.status),
	}
	sizeLabels := map[string]string{
		"method":   rec.method,
		"endpoint": rec.endpoint,
	}

	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", rec.duration, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(rec.requestSize), sizeLabels)
	_ = sys.Gauge("http_response_size_bytes", float64(rec.responseSize), sizeLabels)

	if kind := errorType(rec.status); kind != "" {
		_ = sys.Counter("http_errors_total", 1, map[string]string{
			"method":     rec.method,
			"endpoint":   rec.endpoint,
			"status":     strconv.Itoa(rec.status),
			"error_type": kind,
		})
	}
}

// log writes the access log line. Probe and scrape traffic is logged at debug.
func (rec requestRecord) log() {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("method", rec.method),
		zap.String("path", rec.path),
		zap.String("endpoint", rec.endpoint),
		zap.Int("status", rec.status),
		zap.Duration("duration", rec.duration),
		zap.Int64("request_size", rec.requestSize),
		zap.Int64("response_size", rec.responseSize),
		zap.String("requestID", rec.requestID),
	}
	if rec.sessionID != "" {
		fields = append(fields, zap.String("sessionID", rec.sessionID))
	}

	if rec.endpoint == "/metrics" || strings.HasPrefix(rec.endpoint, "/health") {
		logger.Debug("HTTP request completed", fields...)
		return
	}
	logger.Info("HTTP request completed", fields...)
}

// RequestMetrics emits per-request telemetry and an access log line.
// It does nothing when telemetry is not initialized.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		record := requestRecord{
			method:       r.Method,
			path:         r.URL.Path,
			endpoint:     getEndpointPattern(r),
			status:       recorder.status,
			duration:     time.Since(start),
			requestSize:  max(r.ContentLength, 0),
			responseSize: recorder.bytes,
			requestID:    GetRequestID(r.Context()),
			sessionID:    w.Header().Get(SessionIDHeader),
		}
		record.emit()
		record.log()
	})
}

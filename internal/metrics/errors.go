package metrics

import (
	"strconv"

	"github.com/searchprobe/searchprobe/internal/observability"
)

// Error metric names.
const (
	ErrorsTotal = "errors_total"
	PanicsTotal = "panics_total"
)

// RecordHTTPError counts one error response by envelope code, status and route.
// route must be a route pattern, not a raw path.
func RecordHTTPError(route, code string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	_ = observability.TelemetrySystem.Counter(ErrorsTotal, 1, map[string]string{
		"route":       route,
		"error_code":  code,
		"http_status": strconv.Itoa(status),
		"class":       statusClass(status),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, nil)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "other"
	}
}

package metrics

import (
	"strconv"
	"time"

	"github.com/searchprobe/searchprobe/internal/observability"
)

// Metric names follow Prometheus conventions.
const (
	SearchesTotal        = "searchprobe_searches_total"
	SearchDuration       = "searchprobe_search_duration_ms"
	EnrichmentsTotal     = "searchprobe_enrichments_total"
	EnrichmentDuration   = "searchprobe_enrichment_duration_ms"
	FeedbackTotal        = "searchprobe_feedback_total"
	BackendRequestsTotal = "searchprobe_backend_requests_total"
	ActiveSessions       = "searchprobe_active_sessions"
	HealthCheckTotal     = "app_health_check_total"
	HealthCheckDuration  = "app_health_check_duration_ms"
	ServerStartTime      = "app_server_start_time_seconds"
	ServerUptime         = "app_server_uptime_seconds"
)

// RecordSearch records a primary search by outcome: success, network, server_fault,
// superseded or invalid. Invalid searches never reach the backend and carry no duration.
func RecordSearch(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(SearchesTotal, 1, map[string]string{"outcome": outcome})
	if duration > 0 {
		_ = observability.TelemetrySystem.Histogram(SearchDuration, duration, map[string]string{"outcome": outcome})
	}
}

// RecordEnrichment records a finished vendor enrichment.
func RecordEnrichment(status string, fromCache bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{
		"status": status,
		"cached": strconv.FormatBool(fromCache),
	}
	_ = observability.TelemetrySystem.Counter(EnrichmentsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(EnrichmentDuration, duration, labels)
}

// RecordFeedback records a feedback submission attempt.
func RecordFeedback(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(FeedbackTotal, 1, map[string]string{"status": status})
	}
}

// RecordBackendRequest records one outbound backend call by route and status code.
// A zero status means no response was received.
func RecordBackendRequest(route string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BackendRequestsTotal, 1, map[string]string{
			"route":  route,
			"status": strconv.Itoa(status),
		})
	}
}

// SetActiveSessions sets the number of live search sessions held by the server.
func SetActiveSessions(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveSessions, float64(count), nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}

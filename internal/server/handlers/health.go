package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/searchprobe/searchprobe/internal/metrics"
)

// Check results reported per registered checker.
const (
	CheckHealthy   = "healthy"
	CheckDegraded  = "degraded"
	CheckUnhealthy = "unhealthy"
	CheckTimeout   = "timeout"
)

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Sessions  *int              `json:"sessions,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live/ready/startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is anything serve depends on that can report its health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f HealthCheckFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

type registeredCheck struct {
	checker HealthChecker
	// optional checks report degraded instead of unhealthy when they fail.
	optional bool
}

// probe describes one health endpoint. Liveness only proves the process answers,
// so it runs no checks.
type probe struct {
	name     string
	timeout  time.Duration
	noChecks bool
}

var (
	probeAggregate = probe{name: "aggregate", timeout: 5 * time.Second}
	probeLive      = probe{name: "live", timeout: 2 * time.Second, noChecks: true}
	probeReady     = probe{name: "ready", timeout: 5 * time.Second}
	probeStartup   = probe{name: "startup", timeout: 3 * time.Second}
)

// HealthManager runs registered checks for the health endpoints.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checks   map[string]registeredCheck
	sessions func() int
}

// NewHealthManager creates a manager with no checks.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]registeredCheck),
		version: version,
	}
}

// RegisterChecker registers a check whose failure makes the service unhealthy.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, registeredCheck{checker: checker})
}

// RegisterOptionalChecker registers a check whose failure only degrades the service.
func (hm *HealthManager) RegisterOptionalChecker(name string, checker HealthChecker) {
	hm.register(name, registeredCheck{checker: checker, optional: true})
}

// SetSessionCounter reports the live session count in the aggregate response.
func (hm *HealthManager) SetSessionCounter(count func() int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.sessions = count
}

func (hm *HealthManager) register(name string, check registeredCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = check
}

func (hm *HealthManager) snapshot() (map[string]registeredCheck, func() int) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	checks := make(map[string]registeredCheck, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	return checks, hm.sessions
}

// runChecks executes the registered checks in name order until ctx expires.
// Checks not reached before the deadline are reported as timed out.
func (hm *HealthManager) runChecks(ctx context.Context, checks map[string]registeredCheck) map[string]string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			results[name] = CheckTimeout
			continue
		}
		check := checks[name]
		start := time.Now()
		err := check.checker.CheckHealth(ctx)
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
		switch {
		case err == nil:
			results[name] = CheckHealthy
		case check.optional:
			results[name] = CheckDegraded
		default:
			results[name] = CheckUnhealthy
		}
	}
	return results
}

// overallStatus folds per-check results into one status.
func overallStatus(results map[string]string) string {
	status := CheckHealthy
	for _, result := range results {
		switch result {
		case CheckUnhealthy:
			return CheckUnhealthy
		case CheckDegraded, CheckTimeout:
			status = CheckDegraded
		}
	}
	return status
}

func (hm *HealthManager) evaluate(ctx context.Context, p probe) (string, map[string]string, func() int) {
	checks, sessions := hm.snapshot()
	if p.noChecks {
		return CheckHealthy, nil, sessions
	}
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	results := hm.runChecks(checkCtx, checks)
	return overallStatus(results), results, sessions
}

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, p probe) {
	status, results, _ := hm.evaluate(r.Context(), p)
	if status == CheckUnhealthy {
		respondWithError(w, r, healthEnvelope(p, status, results))
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

// HealthHandler serves the aggregate status with per-check results.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, results, sessions := hm.evaluate(r.Context(), probeAggregate)
	if status == CheckUnhealthy {
		respondWithError(w, r, healthEnvelope(probeAggregate, status, results))
		return
	}

	response := HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
	}
	if sessions != nil {
		count := sessions()
		response.Sessions = &count
	}
	writeJSON(w, http.StatusOK, response)
}

// LivenessHandler reports that the process is serving requests.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeLive)
}

// ReadinessHandler reports whether the service can take search traffic.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeReady)
}

// StartupHandler reports whether initialization finished.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeStartup)
}

func healthEnvelope(p probe, status string, results map[string]string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", p.name+" health check failed")

	details := map[string]interface{}{"status": status, "probe": p.name}
	if len(results) > 0 {
		details["checks"] = results
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range results {
		if result != CheckHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	contextData := map[string]interface{}{"status": status, "probe": p.name}
	if len(failing) > 0 {
		contextData["unhealthy_checks"] = failing
	}
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide health manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide health manager, or nil before InitHealthManager.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobalManager(p probe, serve func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager == nil {
			envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
			envelope = envelope.WithDetails(map[string]interface{}{"status": "unknown", "probe": p.name})
			respondWithError(w, r, envelope)
			return
		}
		serve(globalHealthManager, w, r)
	}
}

// Route handlers backed by the process-wide manager.
var (
	HealthHandler    = withGlobalManager(probeAggregate, (*HealthManager).HealthHandler)
	LivenessHandler  = withGlobalManager(probeLive, (*HealthManager).LivenessHandler)
	ReadinessHandler = withGlobalManager(probeReady, (*HealthManager).ReadinessHandler)
	StartupHandler   = withGlobalManager(probeStartup, (*HealthManager).StartupHandler)
)

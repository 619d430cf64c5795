package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
)

// RateLimit is the number of requests allowed per window on one route.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore persists per-route limiter state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, route string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, route string, state *core.RateLimitState) error
}

// DefaultLimits are the per-minute budgets for each backend route.
var DefaultLimits = map[string]RateLimit{
	"search":         {RequestsPerWindow: 30, WindowDuration: time.Minute},
	"reverse-lookup": {RequestsPerWindow: 60, WindowDuration: time.Minute},
	"feedback":       {RequestsPerWindow: 20, WindowDuration: time.Minute},
}

var fallbackLimit = RateLimit{RequestsPerWindow: 30, WindowDuration: time.Minute}

// RateLimiter keeps outbound backend traffic inside per-route windows and honors
// Retry-After backoffs. A nil limiter or one without a Store allows everything.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	// Margin scales every limit down, in (0, 1].
	Margin float64

	// mu serializes read-modify-write cycles so concurrent enrichment lookups
	// cannot overrun a window.
	mu sync.Mutex
}

// Reserve claims one request on route. When the route is backing off or its window
// is spent, it returns how long to wait and claims nothing.
func (r *RateLimiter) Reserve(ctx context.Context, route string) (time.Duration, error) {
	if r == nil || r.Store == nil {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	state, err := r.load(ctx, route)
	if err != nil {
		return 0, err
	}
	if wait := state.BackoffRemaining(now); wait > 0 {
		return wait, nil
	}

	limit := r.limitFor(route)
	state.Roll(now, limit.WindowDuration)
	if state.RequestCount >= limit.RequestsPerWindow {
		return state.WindowStart.Add(limit.WindowDuration).Sub(now), nil
	}

	state.RequestCount++
	return 0, r.Store.UpdateRateLimit(ctx, route, state)
}

// Backoff records a 429 on route and blocks it for retryAfter.
func (r *RateLimiter) Backoff(ctx context.Context, route string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load(ctx, route)
	if err != nil {
		return err
	}
	now := r.now()
	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}
	return r.Store.UpdateRateLimit(ctx, route, state)
}

// ApplyOverrides replaces the per-minute budget of the named routes.
// Blank names and non-positive budgets are ignored.
func (r *RateLimiter) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits))
		for route, limit := range DefaultLimits {
			r.Limits[route] = limit
		}
	}
	for route, perMinute := range overrides {
		route = strings.TrimSpace(route)
		if route == "" || perMinute <= 0 {
			continue
		}
		r.Limits[route] = RateLimit{RequestsPerWindow: perMinute, WindowDuration: time.Minute}
	}
}

// ApplySafetyMargin scales every limit by margin. Values outside (0, 1] are ignored.
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil || margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

func (r *RateLimiter) load(ctx context.Context, route string) (*core.RateLimitState, error) {
	state, err := r.Store.GetRateLimit(ctx, route)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.RateLimitState{}
	}
	return state, nil
}

func (r *RateLimiter) limitFor(route string) RateLimit {
	limits := r.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	limit, ok := limits[route]
	if !ok {
		limit = fallbackLimit
	}

	if r.Margin > 0 && r.Margin <= 1 {
		limit.RequestsPerWindow = max(1, int(math.Floor(float64(limit.RequestsPerWindow)*r.Margin)))
	}
	return limit
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

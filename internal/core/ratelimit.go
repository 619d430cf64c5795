package core

import "time"

// RateLimitState is the persisted request window and backoff for one backend route.
type RateLimitState struct {
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}

// BackoffRemaining returns how long the route stays in a server-requested backoff.
func (s *RateLimitState) BackoffRemaining(now time.Time) time.Duration {
	if s == nil || s.BackoffUntil == nil || !now.Before(*s.BackoffUntil) {
		return 0
	}
	return s.BackoffUntil.Sub(now)
}

// Roll starts a fresh window at now once the current window has ended.
func (s *RateLimitState) Roll(now time.Time, window time.Duration) {
	if s.WindowStart.IsZero() || !now.Before(s.WindowStart.Add(window)) {
		s.WindowStart = now
		s.RequestCount = 0
	}
}

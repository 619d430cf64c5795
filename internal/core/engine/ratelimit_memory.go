package engine

import (
	"context"
	"sync"

	"github.com/searchprobe/searchprobe/internal/core"
)

// MemoryRateStore keeps rate limit state in process memory. It is safe for concurrent use.
type MemoryRateStore struct {
	mu    sync.Mutex
	state map[string]core.RateLimitState
}

// GetRateLimit returns a copy of the stored state, or nil if none exists.
func (m *MemoryRateStore) GetRateLimit(ctx context.Context, route string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.state[route]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// UpdateRateLimit replaces the stored state for a route.
func (m *MemoryRateStore) UpdateRateLimit(ctx context.Context, route string, state *core.RateLimitState) error {
	if state == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		m.state = make(map[string]core.RateLimitState)
	}
	m.state[route] = *state
	return nil
}

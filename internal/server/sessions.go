package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/metrics"
	"github.com/searchprobe/searchprobe/internal/observability"
)

// DefaultSessionTTL is used when the configured session TTL is not positive.
const DefaultSessionTTL = 30 * time.Minute

// ControllerFactory builds the search controller backing a new session.
type ControllerFactory func() *engine.SearchController

type session struct {
	controller *engine.SearchController
	lastSeen   time.Time
}

// SessionManager keeps one SearchController per browser session and expires idle ones.
type SessionManager struct {
	factory ControllerFactory
	ttl     time.Duration
	clock   func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a manager that builds controllers with factory.
func NewSessionManager(factory ControllerFactory, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		factory:  factory,
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*session),
	}
}

// Acquire returns the controller for id. An empty, unknown or expired id gets a new
// session under a server-minted id, so clients cannot choose session keys.
// The returned id is the one the caller should send on subsequent requests.
func (m *SessionManager) Acquire(id string) (string, *engine.SearchController) {
	id = strings.TrimSpace(id)
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && id != "" {
		s.lastSeen = now
		return id, s.controller
	}

	id = uuid.NewString()
	s := &session{controller: m.factory(), lastSeen: now}
	m.sessions[id] = s
	metrics.SetActiveSessions(len(m.sessions))
	return id, s.controller
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many were removed.
func (m *SessionManager) Sweep() int {
	cutoff := m.clock().Add(-m.ttl)

	m.mu.Lock()
	var expired []*engine.SearchController
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s.controller)
			delete(m.sessions, id)
		}
	}
	metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	for _, controller := range expired {
		controller.Close()
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 && observability.ServerLogger != nil {
				observability.ServerLogger.Debug("Expired idle sessions", zap.Int("removed", removed))
			}
		}
	}
}

// Close cancels every session's in-flight work and forgets all sessions.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	metrics.SetActiveSessions(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.controller.Close()
	}
}

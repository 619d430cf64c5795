package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchprobe/searchprobe/internal/core/engine"
)

func newTestSessions(ttl time.Duration) (*SessionManager, *time.Time, *int) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	created := 0
	m := NewSessionManager(func() *engine.SearchController {
		created++
		return engine.NewSearchController(engine.ControllerOptions{})
	}, ttl)
	m.clock = func() time.Time { return now }
	return m, &now, &created
}

func TestSessionManagerAcquire(t *testing.T) {
	m, _, created := newTestSessions(time.Minute)
	t.Cleanup(m.Close)

	id, first := m.Acquire("")
	require.NotEmpty(t, id)

	again, same := m.Acquire(id)
	assert.Equal(t, id, again)
	assert.Same(t, first, same)

	fresh, other := m.Acquire("")
	assert.NotEqual(t, id, fresh)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, m.Len())
}

func TestSessionManagerMintsIDForUnknownSession(t *testing.T) {
	m, _, created := newTestSessions(time.Minute)
	t.Cleanup(m.Close)

	minted, first := m.Acquire("client-chosen")
	assert.NotEqual(t, "client-chosen", minted)
	_, err := uuid.Parse(minted)
	require.NoError(t, err)

	again, second := m.Acquire("client-chosen")
	assert.NotEqual(t, minted, again)
	assert.NotSame(t, first, second)

	back, same := m.Acquire(minted)
	assert.Equal(t, minted, back)
	assert.Same(t, first, same)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, m.Len())
}

func TestSessionManagerSweepExpiresIdleSessions(t *testing.T) {
	m, now, _ := newTestSessions(time.Minute)
	t.Cleanup(m.Close)

	idle, _ := m.Acquire("")
	active, _ := m.Acquire("")

	*now = now.Add(45 * time.Second)
	m.Acquire(active)

	*now = now.Add(30 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	renewed, replacement := m.Acquire(idle)
	assert.NotEqual(t, idle, renewed)
	assert.Equal(t, engine.PhaseIdle, replacement.State().Phase)
	assert.Equal(t, 2, m.Len())
}

func TestSessionManagerDefaultsTTL(t *testing.T) {
	m := NewSessionManager(func() *engine.SearchController {
		return engine.NewSearchController(engine.ControllerOptions{})
	}, 0)
	assert.Equal(t, DefaultSessionTTL, m.ttl)
}

func TestSessionManagerRunStopsWithContext(t *testing.T) {
	m, _, _ := newTestSessions(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionManagerCloseForgetsSessions(t *testing.T) {
	m, _, _ := newTestSessions(time.Minute)
	m.Acquire("")
	m.Acquire("")

	m.Close()
	assert.Equal(t, 0, m.Len())
}

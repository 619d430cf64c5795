package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
)

const rateLimitColumns = "request_count, window_start, backoff_until, last_429_at"

var errRouteRequired = errors.New("route is required")

// GetRateLimit returns the stored limiter state for route, or nil when the route has
// never been called.
func (s *Store) GetRateLimit(ctx context.Context, route string) (*core.RateLimitState, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if route = strings.TrimSpace(route); route == "" {
		return nil, errRouteRequired
	}

	row := s.DB.QueryRowContext(ctx, "SELECT "+rateLimitColumns+" FROM rate_limits WHERE route = ?", route)
	state, err := scanRateLimit(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fetch rate limit %s: %w", route, err)
	}
	return state, nil
}

// UpdateRateLimit upserts the limiter state for route.
func (s *Store) UpdateRateLimit(ctx context.Context, route string, state *core.RateLimitState) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if route = strings.TrimSpace(route); route == "" {
		return errRouteRequired
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (route, `+rateLimitColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(route) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at
	`, route, state.RequestCount, state.WindowStart.UTC().Unix(), nullableUnix(state.BackoffUntil), nullableUnix(state.Last429At))
	if err != nil {
		return fmt.Errorf("store rate limit %s: %w", route, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRateLimit reads rateLimitColumns, after any leading columns passed in lead.
func scanRateLimit(row rowScanner, lead ...any) (*core.RateLimitState, error) {
	var (
		state        core.RateLimitState
		windowStart  int64
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)
	if err := row.Scan(append(lead, &state.RequestCount, &windowStart, &backoffUntil, &last429At)...); err != nil {
		return nil, err
	}
	state.WindowStart = time.Unix(windowStart, 0).UTC()
	state.BackoffUntil = timeOrNil(backoffUntil)
	state.Last429At = timeOrNil(last429At)
	return &state, nil
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
)

// RateLimitEntry is the stored limiter state for one backend route.
type RateLimitEntry struct {
	Route string              `json:"route"`
	State core.RateLimitState `json:"state"`
}

// RateLimitQuery selects rate limit rows. Exactly one of All, Route or Prefix
// scopes the selection; BackingOff narrows it to routes still in a 429 backoff at Now.
type RateLimitQuery struct {
	All        bool
	Route      string
	Prefix     string
	BackingOff bool
	Now        time.Time
}

// RateLimitReset reports what a reset touched.
type RateLimitReset struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

// Validate rejects a query that would not scope the selection.
func (q RateLimitQuery) Validate() error {
	if q.All || strings.TrimSpace(q.Route) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --route, or --prefix")
}

func (q RateLimitQuery) where() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		clauses []string
		args    []any
	)
	switch {
	case q.All:
	case strings.TrimSpace(q.Route) != "":
		clauses = append(clauses, "route = ?")
		args = append(args, strings.TrimSpace(q.Route))
	default:
		clauses = append(clauses, "route LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(strings.TrimSpace(q.Prefix))+"%")
	}
	if q.BackingOff {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		clauses = append(clauses, "backoff_until > ?")
		args = append(args, now.UTC().Unix())
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// ListRateLimits returns matching rows ordered by route.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT route, %s
		FROM rate_limits
		%s
		ORDER BY route
	`, rateLimitColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var route string
		state, err := scanRateLimit(rows, &route)
		if err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entries = append(entries, RateLimitEntry{Route: route, State: *state})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// ResetRateLimits deletes matching rows in one transaction. With dryRun it only counts them.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery, dryRun bool) (RateLimitReset, error) {
	report := RateLimitReset{DryRun: dryRun}

	ctx, err := s.ready(ctx)
	if err != nil {
		return report, err
	}
	where, args, err := q.where()
	if err != nil {
		return report, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("reset rate limits: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limits "+where, args...).Scan(&report.Matched); err != nil {
		return report, fmt.Errorf("count rate limits: %w", err)
	}
	if dryRun || report.Matched == 0 {
		return report, nil
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM rate_limits "+where, args...)
	if err != nil {
		return report, fmt.Errorf("reset rate limits: %w", err)
	}
	if report.Deleted, err = result.RowsAffected(); err != nil {
		return report, fmt.Errorf("reset rate limits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("reset rate limits: %w", err)
	}
	return report, nil
}

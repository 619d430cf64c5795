package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
)

const defaultHistoryLimit = 20

// ErrSearchNotFound is returned when a search id is not in the history.
var ErrSearchNotFound = errors.New("search not found in history")

// HistoryEntry is one recorded search. Result is only populated by GetSearch.
type HistoryEntry struct {
	SearchID    string             `json:"search_id"`
	Query       core.SearchQuery   `json:"query"`
	ResultCount int                `json:"result_count"`
	CreatedAt   time.Time          `json:"created_at"`
	Result      *core.SearchResult `json:"result,omitempty"`
}

// HistoryQuery filters ListSearches.
type HistoryQuery struct {
	Limit int
	Goal  string
	Since time.Time
}

// RecordSearch stores a successful search and its full result set.
func (s *Store) RecordSearch(ctx context.Context, query core.SearchQuery, result *core.SearchResult) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if result == nil {
		return errors.New("search result is required")
	}
	searchID := strings.TrimSpace(result.ID)
	if searchID == "" {
		return errors.New("search id is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode search result: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO search_history (search_id, goal, location, country_code, location_based, result_count, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(search_id) DO UPDATE SET
			goal = excluded.goal,
			location = excluded.location,
			country_code = excluded.country_code,
			location_based = excluded.location_based,
			result_count = excluded.result_count,
			result_json = excluded.result_json,
			created_at = excluded.created_at
	`, searchID, query.Goal, query.Location, query.CountryCode, boolToInt(query.LocationBased),
		len(result.Results), string(payload), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store search history: %w", err)
	}
	return nil
}

// ListSearches returns recorded searches, newest first, without their result sets.
func (s *Store) ListSearches(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var (
		clauses []string
		args    []any
	)
	if goal := strings.TrimSpace(q.Goal); goal != "" {
		clauses = append(clauses, "goal LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(goal)+"%")
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, q.Since.UTC().Unix())
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT search_id, goal, location, country_code, location_based, result_count, created_at
		FROM search_history
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			entry         HistoryEntry
			location      sql.NullString
			locationBased int
			createdAt     int64
		)
		if err := rows.Scan(&entry.SearchID, &entry.Query.Goal, &location, &entry.Query.CountryCode,
			&locationBased, &entry.ResultCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		entry.Query.Location = location.String
		entry.Query.LocationBased = locationBased != 0
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	return entries, nil
}

// GetSearch loads one recorded search with its result set.
func (s *Store) GetSearch(ctx context.Context, searchID string) (*HistoryEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	searchID = strings.TrimSpace(searchID)
	if searchID == "" {
		return nil, errors.New("search id is required")
	}

	var (
		entry         HistoryEntry
		location      sql.NullString
		locationBased int
		payload       string
		createdAt     int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT search_id, goal, location, country_code, location_based, result_count, result_json, created_at
		FROM search_history
		WHERE search_id = ?
	`, searchID)
	if err := row.Scan(&entry.SearchID, &entry.Query.Goal, &location, &entry.Query.CountryCode,
		&locationBased, &entry.ResultCount, &payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSearchNotFound
		}
		return nil, fmt.Errorf("fetch search history: %w", err)
	}

	var result core.SearchResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode search history: %w", err)
	}

	entry.Query.Location = location.String
	entry.Query.LocationBased = locationBased != 0
	entry.CreatedAt = time.Unix(createdAt, 0).UTC()
	entry.Result = &result
	return &entry, nil
}

// PruneSearches deletes history recorded before cutoff and reports how many rows went.
func (s *Store) PruneSearches(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM search_history WHERE created_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune search history: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune search history: %w", err)
	}
	return affected, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchprobe/searchprobe/internal/core"
)

// FeedbackEntry is one recorded feedback attempt.
type FeedbackEntry struct {
	ID          string    `json:"id"`
	SearchID    string    `json:"search_id"`
	Rating      int       `json:"rating"`
	Message     string    `json:"message,omitempty"`
	VendorCount int       `json:"vendor_count"`
	StatusCode  int       `json:"status_code,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Accepted reports whether the backend acknowledged the attempt.
func (e FeedbackEntry) Accepted() bool {
	return e.Error == ""
}

// RecordFeedback appends a submission attempt to the feedback log.
func (s *Store) RecordFeedback(ctx context.Context, submission core.FeedbackSubmission, statusCode int, submitErr error) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(submission.SearchID) == "" {
		return errors.New("search id is required")
	}

	var (
		status  sql.NullInt64
		failure sql.NullString
	)
	if statusCode > 0 {
		status = sql.NullInt64{Int64: int64(statusCode), Valid: true}
	}
	if submitErr != nil {
		failure = sql.NullString{String: submitErr.Error(), Valid: true}
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO feedback_log (id, search_id, rating, message, vendor_count, status_code, error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), submission.SearchID, submission.Rating, submission.Message,
		len(submission.Snapshot), status, failure, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store feedback log: %w", err)
	}
	return nil
}

// ListFeedback returns feedback attempts for a search, oldest first. An empty
// searchID lists every attempt.
func (s *Store) ListFeedback(ctx context.Context, searchID string) ([]FeedbackEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, search_id, rating, message, vendor_count, status_code, error, submitted_at
		FROM feedback_log`
	var args []any
	if searchID = strings.TrimSpace(searchID); searchID != "" {
		query += ` WHERE search_id = ?`
		args = append(args, searchID)
	}
	query += ` ORDER BY submitted_at, rowid`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback log: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	entries := []FeedbackEntry{}
	for rows.Next() {
		var (
			entry       FeedbackEntry
			message     sql.NullString
			status      sql.NullInt64
			failure     sql.NullString
			submittedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.SearchID, &entry.Rating, &message, &entry.VendorCount,
			&status, &failure, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan feedback log: %w", err)
		}
		entry.Message = message.String
		entry.StatusCode = int(status.Int64)
		entry.Error = failure.String
		entry.SubmittedAt = time.Unix(submittedAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list feedback log: %w", err)
	}
	return entries, nil
}

package engine

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core"
)

// Searcher issues primary searches against the backend.
type Searcher interface {
	Search(ctx context.Context, query core.SearchQuery) (*core.SearchResult, error)
}

// ReverseLookuper performs a vendor rating lookup.
type ReverseLookuper interface {
	ReverseLookup(ctx context.Context, vendor core.Vendor, location, countryCode string) (*core.ReverseLookup, error)
}

// FeedbackSender posts feedback and returns the acknowledging status code.
type FeedbackSender interface {
	SubmitFeedback(ctx context.Context, submission core.FeedbackSubmission) (int, error)
}

// HistoryRecorder persists successful searches.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, query core.SearchQuery, result *core.SearchResult) error
}

// EnrichmentCache stores reverse lookup answers between sessions.
type EnrichmentCache interface {
	GetEnrichment(ctx context.Context, key core.EnrichmentKey) (*core.ReverseLookup, error)
	SetEnrichment(ctx context.Context, key core.EnrichmentKey, lookup *core.ReverseLookup, ttl time.Duration) error
}

// FeedbackRecorder keeps an audit trail of feedback attempts.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, submission core.FeedbackSubmission, statusCode int, submitErr error) error
}

func logDebug(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Debug(msg, fields...)
	}
}

func logInfo(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Info(msg, fields...)
	}
}

func logWarn(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(msg, fields...)
	}
}

func nowFrom(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now().UTC()
}

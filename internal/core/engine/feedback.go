package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/metrics"
)

const (
	MinFeedbackRating = 0
	MaxFeedbackRating = 10
)

// SubmitterOptions configures a FeedbackSubmitter.
type SubmitterOptions struct {
	Sender FeedbackSender
	Log    FeedbackRecorder
	Logger *logging.Logger
	Clock  func() time.Time
}

// Draft is the user's unsent feedback. Rating is kept as typed text until submission.
type Draft struct {
	Message string `json:"message"`
	Rating  string `json:"rating"`
}

// Ack confirms the backend accepted a submission.
type Ack struct {
	SearchID    string    `json:"search_id"`
	StatusCode  int       `json:"status_code"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FeedbackSubmitter posts feedback for exactly one result set.
type FeedbackSubmitter struct {
	searchID string
	prompt   string
	snapshot []core.Vendor
	opts     SubmitterOptions

	mu    sync.Mutex
	draft Draft
	// revision counts SetDraft calls so Submit only clears the draft it sent.
	revision uint64
}

// NewFeedbackSubmitter scopes a submitter to result. prompt is the goal text that produced it.
func NewFeedbackSubmitter(result *core.SearchResult, prompt string, opts SubmitterOptions) *FeedbackSubmitter {
	f := &FeedbackSubmitter{prompt: prompt, opts: opts}
	if result != nil {
		f.searchID = result.ID
		f.snapshot = result.Results
		if strings.TrimSpace(prompt) == "" {
			f.prompt = result.Prompt
		}
	}
	return f
}

// SearchID returns the search this submitter is bound to.
func (f *FeedbackSubmitter) SearchID() string {
	return f.searchID
}

// SetDraft replaces the draft.
func (f *FeedbackSubmitter) SetDraft(message, rating string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = Draft{Message: message, Rating: rating}
	f.revision++
}

// Draft returns the current draft.
func (f *FeedbackSubmitter) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Submit sends the current draft. On success the draft is cleared unless it was edited
// while the request was in flight; on failure it is kept so the user can retry. Every
// call sends a new request.
func (f *FeedbackSubmitter) Submit(ctx context.Context) (*Ack, error) {
	f.mu.Lock()
	draft, revision := f.draft, f.revision
	f.mu.Unlock()

	rating, err := ParseRating(draft.Rating)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.searchID) == "" {
		return nil, &core.ValidationError{Fields: []string{"search_id"}, Message: "feedback requires a completed search"}
	}
	if f.opts.Sender == nil {
		return nil, &core.SubmissionError{Message: "feedback endpoint is not configured"}
	}

	submission := core.FeedbackSubmission{
		SearchID: f.searchID,
		Prompt:   f.prompt,
		Message:  draft.Message,
		Rating:   rating,
		Snapshot: f.snapshot,
	}

	statusCode, sendErr := f.opts.Sender.SubmitFeedback(ctx, submission)
	f.record(ctx, submission, statusCode, sendErr)
	metrics.RecordFeedback(sendErr == nil)

	if sendErr != nil {
		logWarn(f.opts.Logger, "Feedback submission failed",
			zap.String("search_id", f.searchID),
			zap.Int("status", statusCode),
			zap.Error(sendErr))
		return nil, &core.SubmissionError{StatusCode: statusCode, Message: submissionMessage(sendErr), Err: sendErr}
	}

	f.mu.Lock()
	if f.revision == revision {
		f.draft = Draft{}
	}
	f.mu.Unlock()

	logInfo(f.opts.Logger, "Feedback submitted",
		zap.String("search_id", f.searchID),
		zap.Int("rating", rating))

	return &Ack{
		SearchID:    f.searchID,
		StatusCode:  statusCode,
		SubmittedAt: nowFrom(f.opts.Clock),
	}, nil
}

func (f *FeedbackSubmitter) record(ctx context.Context, submission core.FeedbackSubmission, statusCode int, sendErr error) {
	if f.opts.Log == nil {
		return
	}
	if err := f.opts.Log.RecordFeedback(ctx, submission, statusCode, sendErr); err != nil {
		logDebug(f.opts.Logger, "Feedback log write failed", zap.Error(err))
	}
}

// ParseRating validates a typed rating: a whole number between 0 and 10.
func ParseRating(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	rating, err := strconv.Atoi(value)
	if err != nil {
		return 0, &core.ValidationError{Fields: []string{"rating"}, Message: "rating must be a whole number"}
	}
	if rating < MinFeedbackRating || rating > MaxFeedbackRating {
		return 0, &core.ValidationError{Fields: []string{"rating"}, Message: "rating must be between 0 and 10"}
	}
	return rating, nil
}

func submissionMessage(err error) string {
	var fault *core.FaultError
	if errors.As(err, &fault) {
		return fault.Message
	}
	var transport *core.TransportError
	if errors.As(err, &transport) && transport.StatusCode != 0 {
		return "feedback was not accepted"
	}
	return "unable to reach the feedback service"
}

func asValidation(err error) error {
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		return validation
	}
	return nil
}

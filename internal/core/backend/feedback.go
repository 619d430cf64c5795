package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/searchprobe/searchprobe/internal/core"
)

// RouteFeedback is the rate limit key for the feedback endpoint.
const RouteFeedback = "feedback"

const feedbackPath = "/feedback"

// SubmitFeedback posts a feedback submission and returns the acknowledging status code.
func (c *Client) SubmitFeedback(ctx context.Context, submission core.FeedbackSubmission) (int, error) {
	const op = "feedback"

	target, err := c.endpoint(feedbackPath, nil)
	if err != nil {
		return 0, &core.TransportError{Op: op, Err: err}
	}

	if submission.Snapshot == nil {
		submission.Snapshot = []core.Vendor{}
	}

	resp, cancel, err := c.do(ctx, op, RouteFeedback, http.MethodPost, target, submission)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := readBody(resp)
		return resp.StatusCode, parseFault(resp, body)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp.StatusCode, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(statusText(resp))}
	}

	return resp.StatusCode, nil
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/searchprobe/searchprobe/internal/core"
)

// RouteReverseLookup is the rate limit key for the enrichment endpoint.
const RouteReverseLookup = "reverse-lookup"

const reversePath = "/static/reverse-yelp/"

type reverseRequest struct {
	Vendor      core.Vendor `json:"vendor"`
	Location    string      `json:"location"`
	CountryCode string      `json:"country_code"`
}

type reverseBody struct {
	Rating      *float64        `json:"rating"`
	RatingCount *int            `json:"rating_count"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	Detail      json.RawMessage `json:"detail"`
}

// ReverseLookup asks the enrichment provider for a vendor's rating near a location.
// A provider rejection is returned as a result with Detail set, not as an error.
func (c *Client) ReverseLookup(ctx context.Context, vendor core.Vendor, location, countryCode string) (*core.ReverseLookup, error) {
	const op = "reverse lookup"

	target, err := c.endpoint(reversePath, nil)
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: err}
	}

	payload := reverseRequest{
		Vendor:      vendor,
		Location:    strings.TrimSpace(location),
		CountryCode: strings.TrimSpace(countryCode),
	}

	resp, cancel, err := c.do(ctx, op, RouteReverseLookup, http.MethodPost, target, payload)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := readBody(resp)
	if err != nil {
		return nil, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var parsed reverseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode reverse lookup: %w", err)}
	}

	if detail := detailMessage(parsed.Detail); detail != "" {
		return &core.ReverseLookup{Detail: detail}, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(statusText(resp))}
	}

	return &core.ReverseLookup{
		Rating:      parsed.Rating,
		RatingCount: parsed.RatingCount,
		Latitude:    parsed.Latitude,
		Longitude:   parsed.Longitude,
	}, nil
}

// detailMessage flattens a detail field that may be a string or arbitrary JSON.
func detailMessage(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}

	return trimmed
}

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/searchprobe/searchprobe/internal/core"
)

const (
	// RouteSearch is the rate limit key for the primary search endpoint.
	RouteSearch = "search"

	searchPath        = "/static/"
	noLocationMarker  = "-"
	searchOperationID = "search"
)

// faultBody is the structured error body the backend sends with a server fault.
type faultBody struct {
	Detail struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	} `json:"detail"`
}

// Search runs the primary search. Errors are *core.TransportError or *core.FaultError.
func (c *Client) Search(ctx context.Context, query core.SearchQuery) (*core.SearchResult, error) {
	target, err := c.endpoint(searchPath, searchParams(query))
	if err != nil {
		return nil, &core.TransportError{Op: searchOperationID, Err: err}
	}

	resp, cancel, err := c.do(ctx, searchOperationID, RouteSearch, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := readBody(resp)
	if err != nil {
		return nil, &core.TransportError{Op: searchOperationID, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, parseFault(resp, body)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &core.TransportError{Op: searchOperationID, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", statusText(resp))}
	}

	result, err := DecodeSearchResult(body)
	if err != nil {
		return nil, &core.TransportError{Op: searchOperationID, StatusCode: resp.StatusCode, Err: err}
	}
	return result, nil
}

// DecodeSearchResult decodes a primary search success body.
func DecodeSearchResult(body []byte) (*core.SearchResult, error) {
	var result core.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if result.Count < 0 {
		return nil, fmt.Errorf("decode search response: negative count %d", result.Count)
	}
	if result.Results == nil {
		result.Results = []core.Vendor{}
	}
	return &result, nil
}

func searchParams(query core.SearchQuery) url.Values {
	location := strings.TrimSpace(query.Location)
	if location == "" {
		location = noLocationMarker
	}

	params := url.Values{}
	params.Set("prompt", strings.TrimSpace(query.Goal))
	params.Set("location", location)
	params.Set("country_code", strings.TrimSpace(query.CountryCode))
	return params
}

func parseFault(resp *http.Response, body []byte) *core.FaultError {
	fault := &core.FaultError{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
	}

	var parsed faultBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail.Message != "" {
		fault.Message = parsed.Detail.Message
		fault.ID = parsed.Detail.ID
		return fault
	}

	fault.Message = fault.Status
	return fault
}

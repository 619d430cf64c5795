package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

// Client talks to the search backend. The zero value is not usable; BaseURL is required.
type Client struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *engine.RateLimiter
	Timeout   time.Duration
	UserAgent string
}

// NewHTTPClient creates an HTTP client with pooled connections and the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c *Client) baseURL() (*url.URL, error) {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return nil, errors.New("backend base url is not configured")
	}
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base url: %q", c.BaseURL)
	}
	return parsed, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	base, err := c.baseURL()
	if err != nil {
		return "", err
	}
	target := *base
	target.Path = strings.TrimRight(base.Path, "/") + path
	if query != nil {
		target.RawQuery = query.Encode()
	}
	return target.String(), nil
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.Client != nil {
		return c.Client
	}
	return NewHTTPClient(c.timeout())
}

func (c *Client) timeout() time.Duration {
	if c != nil && c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

// do applies the per-request timeout and rate limit, then executes the request.
// The returned cancel func must be called once the body has been consumed.
func (c *Client) do(ctx context.Context, op, route, method, target string, payload any) (*http.Response, context.CancelFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	wait, err := c.Limiter.Reserve(ctx, route)
	if err != nil {
		return nil, nil, &core.TransportError{Op: op, Err: err}
	}
	if wait > 0 {
		return nil, nil, &core.TransportError{Op: op, StatusCode: http.StatusTooManyRequests, Err: fmt.Errorf("rate limited, retry in %s", wait.Round(time.Second))}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout())
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		cancel()
		metrics.RecordBackendRequest(route, 0)
		return nil, nil, &core.TransportError{Op: op, Err: err}
	}
	metrics.RecordBackendRequest(route, resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		if wait := retryAfter(resp, time.Now()); wait > 0 {
			_ = c.Limiter.Backoff(ctx, route, wait)
		}
		_ = resp.Body.Close()
		cancel()
		return nil, nil, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("backend rate limited")}
	}

	return resp, cancel, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func statusText(resp *http.Response) string {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if status == "" {
		status = http.StatusText(resp.StatusCode)
	}
	return status
}

// retryAfter reads Retry-After as seconds or an HTTP date. It returns 0 when the header
// is absent, unparseable or already in the past.
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

// Package external is the boundary between the application and third-party
// HTTP APIs. Every outbound call goes through Client, which applies the same
// circuit breaking, retry with backoff, and error mapping.
package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorCode classifies an upstream failure.
type ErrorCode string

const (
	CodeUnavailable ErrorCode = "upstream_unavailable"
	CodeRateLimited ErrorCode = "upstream_rate_limited"
	CodeCircuitOpen ErrorCode = "upstream_circuit_open"
	CodeBadResponse ErrorCode = "upstream_bad_response"
	CodeRequest     ErrorCode = "upstream_request_failed"
)

// UpstreamError is returned for any failed call through Client.
type UpstreamError struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstreamError reports whether err (or any error in its chain) is an
// UpstreamError with the given code.
func IsUpstreamError(err error, code ErrorCode) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr) && upErr.Code == code
}

// RetryPolicy configures retries for 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for external API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Client wraps an *http.Client and a circuit breaker.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retryPolicy = p }
}

// WithSleepFunc overrides the wait between retries. Tests use it to avoid
// real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](st)
	}
}

// NewClient creates a Client for the API rooted at baseURL. name labels
// the circuit breaker.
func NewClient(baseURL, name, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		retryPolicy: DefaultRetryPolicy(),
		userAgent:   userAgent,
		sleep:       sleepCtx,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](DefaultBreakerSettings(name))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultBreakerSettings trips after more than five consecutive failures
// and probes again after 30 seconds.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
}

// GetJSON performs a GET on path with the given query and decodes the JSON
// response into result.
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &UpstreamError{Code: CodeRequest, Message: "creating request", Err: err}
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Code: CodeBadResponse, StatusCode: resp.StatusCode, Message: "reading response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{
			Code:       CodeBadResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status on GET %s: %s", path, truncate(string(body), 200)),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &UpstreamError{
			Code:       CodeBadResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decoding response from GET %s", path),
			Err:        err,
		}
	}
	return nil
}

// Do executes req through the circuit breaker, retrying 429 and 5xx
// responses with backoff (honouring Retry-After). Non-retryable responses
// are returned as-is; the caller closes the body. Requests are expected to
// carry no body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			if r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned 429")
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}
		if resp != nil {
			lastResp = resp
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			lastErr = ctxErr
			break
		}

		if attempt < maxAttempts-1 {
			if sleepErr := c.sleep(req.Context(), c.backoff(attempt, resp)); sleepErr != nil {
				lastErr = sleepErr
				break
			}
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, mapError(lastResp, lastErr)
}

// backoff honours Retry-After when present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *Client) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retryPolicy.MaxWait))
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func mapError(resp *http.Response, err error) *UpstreamError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &UpstreamError{Code: CodeCircuitOpen, Message: "circuit breaker is open", Err: err}
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &UpstreamError{Code: CodeRateLimited, StatusCode: resp.StatusCode, Message: "rate limit exceeded", Err: err}
		case resp.StatusCode >= 500:
			return &UpstreamError{Code: CodeUnavailable, StatusCode: resp.StatusCode, Message: "server error after retries", Err: err}
		}
	}
	return &UpstreamError{Code: CodeRequest, Message: "request failed", Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

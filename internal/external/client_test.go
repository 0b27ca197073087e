package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{
		WithSleepFunc(noSleep),
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	}, opts...)
	return NewClient(url, "test", "climalert-test/1.0", opts...)
}

func TestGetJSON_Success(t *testing.T) {
	var gotQuery, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("latitude")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := newTestClient(server.URL+"/").GetJSON(context.Background(), "/v1/forecast",
		map[string]string{"latitude": "-12.78"}, &out)

	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, "-12.78", gotQuery)
	assert.Equal(t, "climalert-test/1.0", gotUA)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var out map[string]any
	require.NoError(t, newTestClient(server.URL).GetJSON(context.Background(), "/", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient(server.URL).GetJSON(context.Background(), "/", nil, &out)

	assert.True(t, IsUpstreamError(err, CodeUnavailable))
	assert.Equal(t, int32(4), calls.Load())
}

func TestGetJSON_RateLimitedHonoursRetryAfter(t *testing.T) {
	var waits []time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL,
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Minute}),
		WithSleepFunc(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)

	var out map[string]any
	err := client.GetJSON(context.Background(), "/", nil, &out)

	assert.True(t, IsUpstreamError(err, CodeRateLimited))
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason": "latitude out of range"}`))
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient(server.URL).GetJSON(context.Background(), "/", nil, &out)

	require.Error(t, err)
	assert.True(t, IsUpstreamError(err, CodeBadResponse))
	assert.Contains(t, err.Error(), "latitude out of range")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient(server.URL).GetJSON(context.Background(), "/", nil, &out)
	assert.True(t, IsUpstreamError(err, CodeBadResponse))
}

func TestDo_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	settings := DefaultBreakerSettings("test")
	settings.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 }
	settings.Timeout = time.Hour
	client := newTestClient(server.URL,
		WithBreakerSettings(settings),
		WithRetryPolicy(RetryPolicy{MaxRetries: 5, MinWait: time.Millisecond, MaxWait: time.Millisecond}),
	)

	var out map[string]any
	err := client.GetJSON(context.Background(), "/", nil, &out)

	assert.True(t, IsUpstreamError(err, CodeCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())

	// An open circuit fails fast without reaching the server.
	err = client.GetJSON(context.Background(), "/", nil, &out)
	assert.True(t, IsUpstreamError(err, CodeCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ContextCancelledStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(server.URL, WithSleepFunc(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	var out map[string]any
	err := client.GetJSON(ctx, "/", nil, &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Bounds(t *testing.T) {
	c := NewClient("http://example", "test", "")
	for attempt := 0; attempt < 10; attempt++ {
		d := c.backoff(attempt, nil)
		assert.GreaterOrEqual(t, d, c.retryPolicy.MinWait)
		assert.LessOrEqual(t, d, c.retryPolicy.MaxWait)
	}
}

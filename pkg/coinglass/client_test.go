package coinglass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient("test-key",
		WithBaseURL(server.URL),
		WithCallsPerMinute(MaxCallsPerMinute),
		WithHTTPClient(server.Client()),
	)
	return client, server
}

func TestFetchSuccess(t *testing.T) {
	var gotPath, gotKey, gotLimit string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("CG-API-KEY")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"0","msg":"success","data":[{"time":1700000000,"close":42.5}]}`))
	})

	recs, err := client.Fetch(context.Background(), "/api/futures/price/history", map[string]string{
		"symbol": "BTCUSDT",
		"limit":  "4500",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 42.5, recs[0]["close"])
	require.Equal(t, "/api/futures/price/history", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "4500", gotLimit)
}

func TestFetchHTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("nope"))
	})

	_, err := client.Fetch(context.Background(), "/x", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.Status)
	require.Contains(t, httpErr.Body, "nope")
}

func TestFetchDecodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})

	_, err := client.Fetch(context.Background(), "/x", nil)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestFetchProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"4001","msg":"limit exceeds maximum"}`))
	})

	_, err := client.Fetch(context.Background(), "/x", nil)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, "4001", provErr.Code)
	require.Equal(t, "limit exceeds maximum", provErr.Msg)
}

func TestFetchNumericProviderCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":[{"time":1}]}`))
	})

	recs, err := client.Fetch(context.Background(), "/x", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","data":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Fetch(ctx, "/x", nil)
	require.Error(t, err)
}

func TestCallInterval(t *testing.T) {
	require.Equal(t, time.Minute/80, callInterval(80))
	require.Equal(t, time.Minute/80, callInterval(500)) // clamped to the ceiling
	require.Equal(t, time.Minute, callInterval(0))
	require.Equal(t, time.Minute, callInterval(-3))
	require.Equal(t, time.Minute/10, callInterval(10))
}

func TestLimiterSpacesCalls(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"code":"0","data":[]}`))
	})
	// Tight budget so two calls must straddle one interval.
	client.limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := client.Fetch(context.Background(), "/x", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

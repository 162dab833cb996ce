package coinglass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cgsync/pkg/ingest"
)

const (
	defaultBaseURL     = "https://open-api-v4.coinglass.com"
	defaultHTTPTimeout = 60 * time.Second
	// MaxCallsPerMinute is the provider-imposed ceiling; configuration above
	// it is clamped, never honored.
	MaxCallsPerMinute = 80

	bodySnippetLimit = 300
)

// Client issues rate-limited GET requests against the provider API. It is the
// single admission gate for the process: every fetch, across all tasks, waits
// on the same limiter so the aggregate call rate respects the budget.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCallsPerMinute sets the call budget, clamped to [1, MaxCallsPerMinute].
func WithCallsPerMinute(n int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(callInterval(n)), 1)
	}
}

// NewClient constructs a provider client with the default call budget.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Every(callInterval(MaxCallsPerMinute)), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func callInterval(callsPerMinute int) time.Duration {
	if callsPerMinute > MaxCallsPerMinute {
		callsPerMinute = MaxCallsPerMinute
	}
	if callsPerMinute < 1 {
		callsPerMinute = 1
	}
	return time.Minute / time.Duration(callsPerMinute)
}

// Fetch performs one GET against path, blocking on the rate limiter first,
// and returns the unwrapped record list.
func (c *Client) Fetch(ctx context.Context, path string, params map[string]string) ([]ingest.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coinglass: build request %s: %w", path, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("User-Agent", "cgsync/1.0")
	if c.apiKey != "" {
		req.Header.Set("CG-API-KEY", c.apiKey)
		req.Header.Set("coinglassSecret", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinglass: request %s: %w", path, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("coinglass: read response %s: %w", path, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: snippet(body)}
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &DecodeError{Body: snippet(body)}
	}
	if envelope, ok := payload.(map[string]any); ok {
		if code, present := envelope["code"]; present {
			if s := codeString(code); s != "0" {
				return nil, &ProviderError{Code: s, Msg: messageString(envelope)}
			}
		}
	}
	return UnwrapList(payload), nil
}

func codeString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func messageString(envelope map[string]any) string {
	for _, key := range []string{"msg", "message"} {
		if s, ok := envelope[key].(string); ok {
			return s
		}
	}
	return ""
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > bodySnippetLimit {
		s = s[:bodySnippetLimit]
	}
	return strings.ReplaceAll(s, "\n", " ")
}

// Package httpds is the HTTP transport used to talk to remote authority
// services. It wraps net/http with retry/backoff for transient failures and
// reports the final URL reached after redirects, which is how label lookups
// discover canonical authority URIs.
//
// Design goals:
//
//   - Keep a tiny, explicit API (Do, Get, Head, Fetch).
//   - Handle transient failures (transport errors, 5xx, 429) with exponential
//     backoff, honoring Retry-After when the server sends one.
//   - Respect context cancellation during requests and backoff waits.
//   - Be easy to test by injecting a custom RoundTripper and sleep function.
package httpds

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Config configures the HTTP client.
//
// Zero values are given sensible defaults:
//   - Timeout:        30s
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// Timeout is the per-attempt timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request.
	// MaxRetries=0 means "no retries" (only the initial attempt).
	MaxRetries int

	// InitialBackoff is the base backoff duration for the first retry.
	// Each subsequent retry doubles the previous backoff up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff duration and any Retry-After
	// hint received from the server.
	MaxBackoff time.Duration

	// UserAgent, when set, is sent with every request.
	UserAgent string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// BaseHeaders are added to every request. Per-request headers win.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper. When nil, a default
	// *http.Transport is constructed based on the TLS settings.
	Transport http.RoundTripper
}

// Request describes one logical call. Body is a byte slice so it can be
// re-sent on retry.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Result is a fully read response, used by Fetch.
type Result struct {
	Status int
	// URL is the final URL after redirects.
	URL  string
	Body []byte
}

// Client wraps an http.Client with retry and backoff behavior.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	baseHeaders    http.Header

	// sleep is injectable to make tests fast and deterministic.
	sleep func(time.Duration)
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	if cfg.UserAgent != "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		baseHeaders:    hdr,
		sleep:          time.Sleep,
	}
}

// Do sends req, retrying transport errors and retryable statuses. Redirects
// are followed by net/http; FinalURL reports where the request ended up.
//
// The returned *http.Response has a non-nil Body which the caller must close.
// A non-retryable status is returned as a response, not an error.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("httpds: method must not be empty")
	}
	if req.URL == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		for k, vs := range c.baseHeaders {
			for _, v := range vs {
				hreq.Header.Add(k, v)
			}
		}
		for k, vs := range req.Header {
			hreq.Header.Del(k)
			for _, v := range vs {
				hreq.Header.Add(k, v)
			}
		}

		var wait time.Duration
		resp, err := c.httpClient.Do(hreq)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
		case !isRetryableStatus(resp.StatusCode):
			return resp, nil
		default:
			wait = retryAfter(resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = &StatusError{Method: req.Method, URL: req.URL, Status: resp.StatusCode}
		}

		if attempt+1 >= attempts {
			return nil, lastErr
		}

		backoff := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		if wait > backoff {
			backoff = min(wait, c.maxBackoff)
		}
		if err := sleepWithContext(ctx, c.sleep, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// Get issues a GET. The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: headers})
}

// Head issues a HEAD, following redirects. The caller must close the body.
func (c *Client) Head(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, Request{Method: http.MethodHead, URL: url, Header: headers})
}

// Fetch GETs url and reads at most limit bytes of the body. It never returns
// more than limit bytes even when the server sends more. A limit <= 0 is
// rejected.
func (c *Client) Fetch(ctx context.Context, url string, limit int64, headers http.Header) (*Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("httpds: limit must be > 0")
	}
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, limit)); err != nil {
		return nil, fmt.Errorf("httpds: read body: %w", err)
	}
	return &Result{Status: resp.StatusCode, URL: FinalURL(resp), Body: buf.Bytes()}, nil
}

// FinalURL returns the URL of the request that produced resp, i.e. the last
// hop of any redirect chain.
func FinalURL(resp *http.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}

// StatusError reports a retryable status that persisted through all
// attempts.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: retryable status %d from %s %s", e.Status, e.Method, e.URL)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}

// isRetryableStatus reports whether the status should trigger a retry: 5xx
// and 429 are transient, everything else is final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// retryAfter parses a delay-seconds Retry-After value. HTTP-date values and
// garbage yield 0.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// backoffDuration returns the exponential backoff duration for the given
// attempt number (0-based retry index), clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepWithContext waits d, aborting early if ctx is canceled. The injected
// sleep runs after the timer so tests can observe each wait.
func sleepWithContext(ctx context.Context, sleep func(time.Duration), d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		sleep(0)
		return nil
	}
}

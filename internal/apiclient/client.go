// Package apiclient provides the HTTP plumbing shared by the vendor clients:
// request marshaling, vendor error parsing, optional retries and request hooks.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"aigen/internal/core"
	"aigen/internal/httpclient"
)

// Config describes one vendor endpoint.
type Config struct {
	// VendorName identifies the vendor in errors, logs and metrics.
	VendorName string
	BaseURL    string

	// MaxRetries is 0 unless set: failures reach the caller on the first attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	Hooks Hooks
}

// DefaultConfig returns a fail-fast configuration for vendorName.
func DefaultConfig(vendorName, baseURL string) Config {
	return Config{
		VendorName:     vendorName,
		BaseURL:        baseURL,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2,
	}
}

// HeaderSetter adds vendor credentials and other fixed headers to a request.
type HeaderSetter func(req *http.Request)

// Client sends JSON requests to a single vendor.
type Client struct {
	http    *http.Client
	cfg     Config
	headers HeaderSetter
}

// New creates a Client on the shared pooled transport.
func New(cfg Config, headers HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefault(), cfg, headers)
}

// NewWithHTTPClient creates a Client on hc, or on http.DefaultClient when hc is nil.
func NewWithHTTPClient(hc *http.Client, cfg Config, headers HeaderSetter) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc, cfg: cfg, headers: headers}
}

// SetBaseURL points the client at another host, e.g. a test server.
func (c *Client) SetBaseURL(url string) { c.cfg.BaseURL = url }

// BaseURL reports the host requests are sent to.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Request is one call relative to BaseURL. A non-nil Body is sent as JSON.
type Request struct {
	Method   string
	Endpoint string
	Body     any
	Headers  map[string]string
}

// Response is a fully read 2xx answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends req and decodes the answer into result when result is non-nil.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil || result == nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return core.NewRequestError(c.cfg.VendorName, resp.StatusCode, "failed to unmarshal response: "+err.Error(), err)
	}
	return nil
}

// DoRaw sends req and returns the undecoded answer. Non-2xx answers become
// vendor errors. With MaxRetries > 0, transport failures and 429/502/503/504
// answers are retried with exponential backoff.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	var err error
	for attempt := 0; attempt <= max(c.cfg.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			if werr := c.wait(ctx, req.Endpoint, attempt); werr != nil {
				return nil, werr
			}
		}

		var resp *Response
		resp, err = c.attempt(ctx, req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
		case retryableStatus(resp.StatusCode):
			err = core.ParseVendorError(c.cfg.VendorName, resp.StatusCode, resp.Body)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, core.ParseVendorError(c.cfg.VendorName, resp.StatusCode, resp.Body)
		default:
			return resp, nil
		}
	}
	return nil, err
}

func (c *Client) wait(ctx context.Context, endpoint string, attempt int) error {
	d := c.backoff(attempt)
	slog.DebugContext(ctx, "retrying vendor request",
		"vendor", c.cfg.VendorName,
		"endpoint", endpoint,
		"attempt", attempt,
		"backoff", d,
	)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Download fetches an absolute URL, typically a generated file on a CDN.
// Vendor headers are not sent.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create download request", err)
	}

	resp, err := c.send(ctx, httpReq, "download")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.NewRequestError(c.cfg.VendorName, resp.StatusCode,
			"download of "+rawURL+" failed with status "+http.StatusText(resp.StatusCode), nil)
	}
	return resp.Body, nil
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, httpReq, req.Endpoint)
}

// send performs one round trip, reporting it to the hooks and reading the whole body.
func (c *Client) send(ctx context.Context, httpReq *http.Request, endpoint string) (*Response, error) {
	info := RequestInfo{Vendor: c.cfg.VendorName, Method: httpReq.Method, Endpoint: endpoint}
	c.cfg.Hooks.requestStart(ctx, info)
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.cfg.Hooks.requestEnd(ctx, ResponseInfo{RequestInfo: info, Duration: time.Since(start), Err: err})
		return nil, core.NewRequestError(c.cfg.VendorName, 0, "failed to send request: "+err.Error(), err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	elapsed := time.Since(start)
	c.cfg.Hooks.requestEnd(ctx, ResponseInfo{RequestInfo: info, StatusCode: resp.StatusCode, Duration: elapsed, Err: err})
	if err != nil {
		return nil, core.NewRequestError(c.cfg.VendorName, resp.StatusCode, "failed to read response: "+err.Error(), err)
	}

	slog.DebugContext(ctx, "vendor request finished",
		"vendor", c.cfg.VendorName,
		"method", httpReq.Method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", elapsed,
	)
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.cfg.BaseURL+req.Endpoint, body)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	h := httpReq.Header
	if body != nil {
		h.Set("Content-Type", "application/json")
	}
	if id := core.GetRequestID(ctx); core.IsValidClientRequestID(id) {
		h.Set("X-Client-Request-Id", id)
	}
	if c.headers != nil {
		c.headers(httpReq)
	}
	for k, v := range req.Headers {
		h.Set(k, v)
	}
	return httpReq, nil
}

// backoff is InitialBackoff grown by BackoffFactor per attempt after the
// first, capped at MaxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.cfg.BackoffFactor
		if d >= float64(c.cfg.MaxBackoff) {
			return c.cfg.MaxBackoff
		}
	}
	return min(time.Duration(d), c.cfg.MaxBackoff)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

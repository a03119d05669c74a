// Package providers holds what the vendor client packages share: constructor options.
package providers

import (
	"net/http"

	"aigen/internal/apiclient"
)

// Options configures a vendor client. The zero value talks to the vendor's
// public base URL with a pooled HTTP client, no hooks and no retries.
type Options struct {
	// BaseURL overrides the vendor's default base URL.
	BaseURL string
	// HTTPClient replaces the pooled client from internal/httpclient.
	HTTPClient *http.Client
	Hooks      apiclient.Hooks
	// MaxRetries enables retries of 429/502/503/504 answers. Zero keeps the fail-fast policy.
	MaxRetries int
}

// NewAPIClient builds the apiclient.Client for vendor from opts.
func NewAPIClient(vendor, defaultBaseURL string, opts Options, headerSetter apiclient.HeaderSetter) *apiclient.Client {
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	cfg := apiclient.DefaultConfig(vendor, baseURL)
	cfg.Hooks = opts.Hooks
	if opts.MaxRetries > 0 {
		cfg.MaxRetries = opts.MaxRetries
	}

	if opts.HTTPClient != nil {
		return apiclient.NewWithHTTPClient(opts.HTTPClient, cfg, headerSetter)
	}
	return apiclient.New(cfg, headerSetter)
}

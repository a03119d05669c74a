// Package httpclient builds the *http.Client shared by the vendor clients.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Environment variables read by Default. Values are seconds or Go durations ("90s", "5m").
const (
	EnvTimeout     = "HTTP_TIMEOUT"
	EnvDialTimeout = "HTTP_DIAL_TIMEOUT"
)

// Settings tunes the transport and the overall request deadline.
type Settings struct {
	// Timeout bounds a whole exchange, body included. Text-to-image calls hold
	// the connection until every sample is rendered, so it is generous.
	Timeout             time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
}

// Default returns Settings for generation APIs, applying EnvTimeout and EnvDialTimeout.
func Default() Settings {
	return Settings{
		Timeout:             durationFromEnv(EnvTimeout, 5*time.Minute),
		DialTimeout:         durationFromEnv(EnvDialTimeout, 30*time.Second),
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 8,
	}
}

// New returns a client with its own pooled transport.
func New(s Settings) *http.Client {
	dialer := &net.Dialer{Timeout: s.DialTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: s.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   s.TLSHandshakeTimeout,
			IdleConnTimeout:       s.IdleConnTimeout,
			MaxIdleConnsPerHost:   s.MaxIdleConnsPerHost,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// NewDefault is New(Default()).
func NewDefault() *http.Client {
	return New(Default())
}

// durationFromEnv falls back to def when key is unset, unparsable or not positive.
func durationFromEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var d time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(secs) * time.Second
	} else if parsed, err := time.ParseDuration(raw); err == nil {
		d = parsed
	}
	if d <= 0 {
		return def
	}
	return d
}

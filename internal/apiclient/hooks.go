package apiclient

import (
	"context"
	"time"
)

// RequestInfo describes an outgoing vendor request.
type RequestInfo struct {
	Vendor   string
	Method   string
	Endpoint string
}

// ResponseInfo describes a finished vendor request. StatusCode is 0 when the request never got an answer.
type ResponseInfo struct {
	RequestInfo
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks observe every request a Client sends. Nil functions are skipped.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo)
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

func (h Hooks) requestStart(ctx context.Context, info RequestInfo) {
	if h.OnRequestStart != nil {
		h.OnRequestStart(ctx, info)
	}
}

func (h Hooks) requestEnd(ctx context.Context, info ResponseInfo) {
	if h.OnRequestEnd != nil {
		h.OnRequestEnd(ctx, info)
	}
}

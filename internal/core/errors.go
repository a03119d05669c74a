// Package core provides the types and error kinds shared by the vendor clients.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a client failure.
type ErrorKind string

const (
	// ErrorKindRequest indicates a transport failure, a non-2xx answer or an unusable response body.
	ErrorKindRequest ErrorKind = "request_error"
	// ErrorKindSubmission indicates a job could not be submitted or its submission answer was malformed.
	ErrorKindSubmission ErrorKind = "submission_error"
	// ErrorKindPoll indicates a job status poll yielded no usable snapshot.
	ErrorKindPoll ErrorKind = "poll_error"
	// ErrorKindJobFailed indicates the vendor reported the job as failed.
	ErrorKindJobFailed ErrorKind = "job_failed_error"
	// ErrorKindInvalidRequest indicates the request could not be built locally.
	ErrorKindInvalidRequest ErrorKind = "invalid_request_error"
)

// ClientError is the error type returned by every vendor client.
type ClientError struct {
	Kind       ErrorKind `json:"kind"`
	Vendor     string    `json:"vendor,omitempty"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Vendor != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Vendor, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is matches another *ClientError by kind, so errors.Is(err, &ClientError{Kind: ErrorKindPoll}) works.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Vendor == "" || t.Vendor == e.Vendor)
}

// NewRequestError creates a request error. statusCode is 0 for transport failures.
func NewRequestError(vendor string, statusCode int, message string, err error) *ClientError {
	return &ClientError{
		Kind:       ErrorKindRequest,
		Vendor:     vendor,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewSubmissionError creates a job submission error.
func NewSubmissionError(vendor string, message string, err error) *ClientError {
	return &ClientError{
		Kind:    ErrorKindSubmission,
		Vendor:  vendor,
		Message: message,
		Err:     err,
	}
}

// NewPollError creates a job status poll error.
func NewPollError(vendor string, message string, err error) *ClientError {
	return &ClientError{
		Kind:    ErrorKindPoll,
		Vendor:  vendor,
		Message: message,
		Err:     err,
	}
}

// NewInvalidRequestError creates an error for requests that could not be built.
func NewInvalidRequestError(message string, err error) *ClientError {
	return &ClientError{
		Kind:    ErrorKindInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the error kind found in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var jobErr *JobFailedError
	if errors.As(err, &jobErr) {
		return ErrorKindJobFailed
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind
	}
	return ""
}

// JobFailedError reports a job that reached the vendor's error state.
// Snapshot holds the status item that reported the failure.
type JobFailedError struct {
	Vendor   string
	JobID    string
	Status   string
	Snapshot any
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("[%s] %s: job %s finished with status %q", e.Vendor, ErrorKindJobFailed, e.JobID, e.Status)
}

// ParseVendorError builds a request error from a non-2xx vendor answer.
// It understands both {"error":{"message":...}} and {"message":...} bodies and
// falls back to the raw body text.
func ParseVendorError(vendor string, statusCode int, body []byte) *ClientError {
	var errorResponse struct {
		Error json.RawMessage `json:"error"`
		// Stability answers with a top level message
		Message string `json:"message"`
	}

	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errorResponse); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		switch {
		case len(errorResponse.Error) > 0 && json.Unmarshal(errorResponse.Error, &nested) == nil && nested.Message != "":
			message = nested.Message
		case len(errorResponse.Error) > 0 && errorResponse.Error[0] == '"':
			_ = json.Unmarshal(errorResponse.Error, &message)
		case errorResponse.Message != "":
			message = errorResponse.Message
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return NewRequestError(vendor, statusCode, fmt.Sprintf("unexpected status %d: %s", statusCode, message), nil)
}

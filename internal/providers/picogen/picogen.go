// Package picogen is the client for Picogen's asynchronous image jobs: a job is
// submitted, polled until it completes or fails, and its result files are then
// downloaded.
package picogen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"aigen/internal/apiclient"
	"aigen/internal/core"
	"aigen/internal/imagefile"
	"aigen/internal/providers"
)

const (
	vendorName     = "picogen"
	defaultBaseURL = "https://api.picogen.io"

	// DefaultPollInterval is the wait between two status polls.
	DefaultPollInterval = 5 * time.Second
)

// PollObserver is told about every status snapshot received while waiting.
type PollObserver interface {
	ObservePoll(vendor, status string)
}

// Option tunes the polling behaviour of a Client.
type Option func(*Client)

// WithPollInterval overrides DefaultPollInterval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSleeper replaces the timer-based wait between polls.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleeper = s
		}
	}
}

// WithPollObserver registers o for every status snapshot.
func WithPollObserver(o PollObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client submits, polls and downloads Picogen jobs.
type Client struct {
	client       *apiclient.Client
	apiKey       string
	out          *imagefile.Writer
	pollInterval time.Duration
	sleeper      Sleeper
	observer     PollObserver
}

// New creates a Picogen client that writes downloaded results through out.
func New(apiKey string, out *imagefile.Writer, opts providers.Options, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("picogen: api key cannot be empty")
	}
	if out == nil {
		return nil, errors.New("picogen: image writer is required")
	}
	c := &Client{
		apiKey:       apiKey,
		out:          out,
		pollInterval: DefaultPollInterval,
		sleeper:      timerSleeper{},
	}
	for _, opt := range options {
		opt(c)
	}
	c.client = providers.NewAPIClient(vendorName, defaultBaseURL, opts, c.setHeaders)
	return c, nil
}

// SetBaseURL allows configuring a custom base URL for the client
func (c *Client) SetBaseURL(baseURL string) {
	c.client.SetBaseURL(baseURL)
}

// PollInterval returns the wait between two status polls.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("API-Token", c.apiKey)
}

// SubmitJob posts payload to /job/run. The answer is a JSON array whose element
// at index 1 is the job; element 0 carries the vendor's error, if any.
// Every failure, transport included, is a submission error.
func (c *Client) SubmitJob(ctx context.Context, payload any) (*Job, error) {
	resp, err := c.client.DoRaw(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/job/run",
		Body:     payload,
	})
	if err != nil {
		return nil, core.NewSubmissionError(vendorName, "request failed: "+err.Error(), err)
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, core.NewSubmissionError(vendorName, "response is not valid JSON", nil)
	}
	parsed := gjson.ParseBytes(resp.Body)
	if !parsed.IsArray() {
		return nil, core.NewSubmissionError(vendorName, "response is not an array", nil)
	}

	elems := parsed.Array()
	if len(elems) < 2 {
		return nil, core.NewSubmissionError(vendorName,
			fmt.Sprintf("response has %d element(s), job expected at index 1", len(elems)), nil)
	}
	if !elems[1].IsObject() {
		msg := "element at index 1 is not a job object"
		if vendorMsg := elems[0].String(); elems[0].Type != gjson.Null && vendorMsg != "" {
			msg += ": " + vendorMsg
		}
		return nil, core.NewSubmissionError(vendorName, msg, nil)
	}

	var job Job
	if err := json.Unmarshal([]byte(elems[1].Raw), &job); err != nil {
		return nil, core.NewSubmissionError(vendorName, "failed to decode job", err)
	}
	if job.ID == "" {
		return nil, core.NewSubmissionError(vendorName, "job has no id", nil)
	}

	slog.InfoContext(ctx, "job submitted", "vendor", vendorName, "job_id", job.ID, "cost", job.Cost)
	return &job, nil
}

// SubmitStabilityJob submits a Stable Diffusion XL job for prompt.
func (c *Client) SubmitStabilityJob(ctx context.Context, prompt string) (*Job, error) {
	return c.SubmitJob(ctx, NewStabilityRequest(prompt, StabilityXL))
}

// SubmitMidjourneyJob submits a Midjourney 5.2 job for prompt.
func (c *Client) SubmitMidjourneyJob(ctx context.Context, prompt string) (*Job, error) {
	return c.SubmitJob(ctx, NewMidjourneyRequest(prompt, Midjourney52))
}

// PollStatus fetches the current snapshot of jobID: the first non-null element
// of the returned array. Every failure, transport included, is a poll error.
func (c *Client) PollStatus(ctx context.Context, jobID string) (*StatusItem, error) {
	resp, err := c.client.DoRaw(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/job/get/" + url.PathEscape(jobID),
	})
	if err != nil {
		return nil, core.NewPollError(vendorName, "request failed: "+err.Error(), err)
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, core.NewPollError(vendorName, "status response is not valid JSON", nil)
	}
	parsed := gjson.ParseBytes(resp.Body)
	if !parsed.IsArray() {
		return nil, core.NewPollError(vendorName, "status response is not an array", nil)
	}

	var first gjson.Result
	parsed.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		first = value
		return false
	})
	if !first.Exists() {
		return nil, core.NewPollError(vendorName, "no status item for job "+jobID, nil)
	}
	if !first.IsObject() {
		return nil, core.NewPollError(vendorName, "status item for job "+jobID+" is not an object", nil)
	}

	var item StatusItem
	if err := json.Unmarshal([]byte(first.Raw), &item); err != nil {
		return nil, core.NewPollError(vendorName, "failed to decode status item", err)
	}
	return &item, nil
}

// WaitForCompletion polls jobID until it completes or fails, sleeping the poll
// interval between polls. There is no attempt cap; bound it with ctx.
// A failed job is reported as *core.JobFailedError carrying the final snapshot.
func (c *Client) WaitForCompletion(ctx context.Context, jobID string) (*StatusItem, error) {
	state := StateSubmitted
	started := time.Now()

	for polls := 1; ; polls++ {
		item, err := c.PollStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if c.observer != nil {
			c.observer.ObservePoll(vendorName, item.Status)
		}

		next, err := Transition(state, *item)
		if err != nil {
			return nil, core.NewPollError(vendorName, err.Error(), err)
		}
		state = next

		slog.DebugContext(ctx, "job polled", "vendor", vendorName, "job_id", jobID, "status", item.Status, "poll", polls)

		switch state {
		case StateCompleted:
			slog.InfoContext(ctx, "job completed",
				"vendor", vendorName,
				"job_id", jobID,
				"polls", polls,
				"duration_ms", item.DurationMs,
				"waited", time.Since(started).Round(time.Millisecond),
			)
			return item, nil
		case StateError:
			return nil, &core.JobFailedError{
				Vendor:   vendorName,
				JobID:    jobID,
				Status:   item.Status,
				Snapshot: *item,
			}
		}

		if err := c.sleeper.Sleep(ctx, c.pollInterval); err != nil {
			return nil, fmt.Errorf("waiting for job %s: %w", jobID, err)
		}
	}
}

// DownloadResults fetches every URL in order into one file batch. The first
// failure, fetch or write, aborts the remaining downloads as a request error;
// paths written so far are returned alongside it.
func (c *Client) DownloadResults(ctx context.Context, urls []string) ([]string, error) {
	batch := c.out.NewBatch()
	paths := make([]string, 0, len(urls))

	for _, u := range urls {
		data, err := c.client.Download(ctx, u)
		if err != nil {
			return paths, err
		}
		path, err := batch.Write(data)
		if err != nil {
			return paths, core.NewRequestError(vendorName, 0, "failed to save "+u+": "+err.Error(), err)
		}
		slog.DebugContext(ctx, "result downloaded", "vendor", vendorName, "url", u, "path", path)
		paths = append(paths, path)
	}

	slog.InfoContext(ctx, "images written", "vendor", vendorName, "count", len(paths), "dir", c.out.Dir)
	return paths, nil
}

// ListCompletedResults returns the first result URL of every completed job in
// the account's job list.
func (c *Client) ListCompletedResults(ctx context.Context) ([]string, error) {
	resp, err := c.client.DoRaw(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/job/list/",
	})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, core.NewRequestError(vendorName, resp.StatusCode, "job list is not valid JSON", nil)
	}

	var urls []string
	gjson.ParseBytes(resp.Body).ForEach(func(_, page gjson.Result) bool {
		page.Get("items").ForEach(func(_, item gjson.Result) bool {
			if item.Get("status").String() != StatusCompleted {
				return true
			}
			if first := item.Get("result.0"); first.Exists() && first.String() != "" {
				urls = append(urls, first.String())
			}
			return true
		})
		return true
	})
	return urls, nil
}

// RunResult is the outcome of a full submit, wait and download cycle.
type RunResult struct {
	Job    Job
	Status StatusItem
	Files  []string
}

// Run submits payload, waits for the job and downloads its results.
func (c *Client) Run(ctx context.Context, payload any) (*RunResult, error) {
	job, err := c.SubmitJob(ctx, payload)
	if err != nil {
		return nil, err
	}

	status, err := c.WaitForCompletion(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	files, err := c.DownloadResults(ctx, status.Result)
	result := &RunResult{Job: *job, Status: *status, Files: files}
	if err != nil {
		return result, err
	}
	return result, nil
}

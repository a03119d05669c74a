// Package stability is the text-to-image client for the Stability AI REST API.
package stability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/lo"

	"aigen/internal/apiclient"
	"aigen/internal/core"
	"aigen/internal/imagefile"
	"aigen/internal/logging"
	"aigen/internal/providers"
)

const (
	vendorName     = "stability"
	defaultBaseURL = "https://api.stability.ai"

	// SDXLEngine is the engine used for text-to-image generation.
	SDXLEngine = "stable-diffusion-xl-1024-v1-0"

	promptWeight = 0.5
)

// Client talks to the Stability AI user, engines and generation endpoints.
type Client struct {
	client *apiclient.Client
	apiKey string
	out    *imagefile.Writer
}

// New creates a Stability client that writes generated images through out.
func New(apiKey string, out *imagefile.Writer, opts providers.Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("stability: api key cannot be empty")
	}
	if out == nil {
		return nil, errors.New("stability: image writer is required")
	}
	c := &Client{apiKey: apiKey, out: out}
	c.client = providers.NewAPIClient(vendorName, defaultBaseURL, opts, c.setHeaders)
	return c, nil
}

// SetBaseURL allows configuring a custom base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// Balance returns the account's remaining credits.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var balance Balance
	if err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/v1/user/balance",
	}, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// Engines lists the engines available to the account.
func (c *Client) Engines(ctx context.Context) ([]Engine, error) {
	var engines []Engine
	if err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/v1/engines/list",
	}, &engines); err != nil {
		return nil, err
	}
	return engines, nil
}

// NewPayload returns the fixed generation parameters for count 1024x1024
// photographic images of prompt.
func NewPayload(prompt string, count int) Payload {
	return Payload{
		CfgScale:           7,
		ClipGuidancePreset: "NONE",
		StylePreset:        "photographic",
		Height:             1024,
		Width:              1024,
		Samples:            count,
		Steps:              40,
		TextPrompts:        []TextPrompt{{Text: prompt, Weight: promptWeight}},
	}
}

// GenerateImages renders count images of prompt and writes every artifact that
// did not finish with ERROR. Artifacts that cannot be decoded or written are
// logged and skipped. It returns the number of files written.
func (c *Client) GenerateImages(ctx context.Context, prompt string, count int) (int, error) {
	if count < 1 {
		return 0, core.NewInvalidRequestError(fmt.Sprintf("image count must be positive, got %d", count), nil)
	}

	var resp artifactsResponse
	if err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/v1/generation/" + SDXLEngine + "/text-to-image",
		Body:     NewPayload(prompt, count),
	}, &resp); err != nil {
		return 0, err
	}

	usable := lo.Filter(resp.Artifacts, func(a Artifact, _ int) bool {
		return a.FinishReason != FinishReasonError
	})
	if skipped := len(resp.Artifacts) - len(usable); skipped > 0 {
		slog.WarnContext(ctx, "skipping failed artifacts", "vendor", vendorName, "count", skipped)
	}

	batch := c.out.NewBatch()
	written := 0
	for _, artifact := range usable {
		path, err := batch.WriteBase64(artifact.Base64)
		if err != nil {
			slog.WarnContext(ctx, "skipping artifact", "vendor", vendorName, "seed", artifact.Seed, logging.Err(err))
			continue
		}
		slog.DebugContext(ctx, "artifact written", "path", path, "seed", artifact.Seed)
		written++
	}

	slog.InfoContext(ctx, "images written", "vendor", vendorName, "count", written, "dir", c.out.Dir)
	return written, nil
}

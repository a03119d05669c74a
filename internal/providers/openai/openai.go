// Package openai is the chat completion client for the OpenAI API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"aigen/internal/apiclient"
	"aigen/internal/core"
	"aigen/internal/providers"
)

const (
	vendorName     = "openai"
	defaultBaseURL = "https://api.openai.com/v1"

	// DefaultTemperature is the sampling temperature used by GetResponse.
	DefaultTemperature = 0.7
)

// Well-known chat models.
const (
	GPT35Turbo = "gpt-3.5-turbo"
	GPT4       = "gpt-4"
)

// Client talks to the OpenAI chat completion and models endpoints.
type Client struct {
	client *apiclient.Client
	apiKey string
}

// New creates a new OpenAI client.
func New(apiKey string, opts providers.Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key cannot be empty")
	}
	c := &Client{apiKey: apiKey}
	c.client = providers.NewAPIClient(vendorName, defaultBaseURL, opts, c.setHeaders)
	return c, nil
}

// SetBaseURL allows configuring a custom base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

// setHeaders sets the required headers for OpenAI API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// ListModels returns the available models, newest first.
// Models created at the same second keep the order the API listed them in.
func (c *Client) ListModels(ctx context.Context) ([]core.Model, error) {
	var resp core.ModelsResponse
	err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/models",
	}, &resp)
	if err != nil {
		return nil, err
	}

	models := append([]core.Model(nil), resp.Data...)
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Created > models[j].Created
	})
	return models, nil
}

// CreateChatRequest builds a single user-message request at DefaultTemperature.
func CreateChatRequest(prompt, model string) *core.ChatRequest {
	return core.NewChatRequest(model, DefaultTemperature, core.Message{Role: core.RoleUser, Content: prompt})
}

// ChatCompletion sends a chat completion request to OpenAI
func (c *Client) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	var resp core.ChatResponse
	err := c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}

// GetResponse sends prompt as a single user message and returns the first choice's content.
func (c *Client) GetResponse(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.ChatCompletion(ctx, CreateChatRequest(prompt, model))
	if err != nil {
		return "", err
	}
	return FirstContent(resp)
}

// FirstContent returns the content of the first choice. A response without
// choices is a request error.
func FirstContent(resp *core.ChatResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", core.NewRequestError(vendorName, http.StatusOK, "chat completion returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// Client speaks the chat completions API. Any OpenAI-compatible endpoint can
// be targeted through BaseURL.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client for baseURL, defaulting to the public API.
func NewClient(baseURL, apiKey string) *Client {
	c := &Client{BaseURL: strings.TrimSpace(baseURL), APIKey: strings.TrimSpace(apiKey)}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return c
}

func (c *Client) Name() string { return "openai" }

// Capabilities reports inline images and JSON mode. Chat completions do not
// take other document types inline.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{SupportsImages: true, SupportsJSONMode: true}
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, errors.New("openai client not configured")
	}
	if c.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	var parsed chatCompletionResponse
	err = driver.PostJSON(ctx, driver.HTTPCall{
		Provider: c.Name(),
		Endpoint: strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		Model:    req.Model,
		Header:   http.Header{"Authorization": {"Bearer " + c.APIKey}},
		Client:   c.HTTPClient,
		Timeout:  c.Timeout,
	}, payload, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed.toDriverResponse()
}

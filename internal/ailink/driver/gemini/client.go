// Package gemini implements the Google Generative Language generateContent
// API as an ailink driver.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash"
)

// Client implements the Gemini driver via direct HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	c := &Client{BaseURL: strings.TrimSpace(baseURL), APIKey: strings.TrimSpace(apiKey)}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return c
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "gemini"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsImages:    true,
		SupportsDocuments: true,
		SupportsJSONMode:  true,
	}
}

// Complete sends a generateContent request. The key travels in the query
// string, which the tracer strips.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, errors.New("gemini client not configured")
	}
	if c.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	payload, err := buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	err = driver.PostJSON(ctx, driver.HTTPCall{
		Provider: c.Name(),
		Endpoint: c.endpoint(req.Model),
		Model:    req.Model,
		Client:   c.HTTPClient,
		Timeout:  c.Timeout,
	}, payload, &parsed)
	if err != nil {
		return nil, err
	}
	return toDriverResponse(&parsed)
}

func (c *Client) endpoint(model string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return strings.TrimRight(c.BaseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(c.APIKey)
}

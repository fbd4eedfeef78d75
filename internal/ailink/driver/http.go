package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCall describes one JSON POST to a provider endpoint.
type HTTPCall struct {
	Provider string
	Endpoint string
	Model    string
	Header   http.Header
	Client   *http.Client
	Timeout  time.Duration
}

// PostJSON sends payload to call.Endpoint and decodes a 2xx reply into out.
// Non-2xx replies become *ProviderError. Every exchange is traced.
func PostJSON(ctx context.Context, call HTTPCall, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for name, values := range call.Header {
		req.Header[name] = values
	}
	req.Header.Set("Content-Type", "application/json")

	client := call.Client
	if client == nil {
		client = http.DefaultClient
	}

	entry := TraceEntry{Driver: call.Provider, Endpoint: call.Endpoint, Model: call.Model, RequestBody: body}
	start := time.Now()
	defer func() {
		entry.DurationMs = time.Since(start).Milliseconds()
		Trace(entry)
	}()

	resp, err := client.Do(req)
	if err != nil {
		entry.Error = err.Error()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	raw, err := io.ReadAll(resp.Body)
	entry.StatusCode = resp.StatusCode
	entry.Response = TraceJSON(raw)
	if err != nil {
		entry.Error = err.Error()
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &ProviderError{
			Provider:    call.Provider,
			StatusCode:  resp.StatusCode,
			Message:     strings.TrimSpace(string(raw)),
			RawResponse: raw,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

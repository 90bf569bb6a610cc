package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// gatewayClient talks to a running clipforge gateway over HTTP.
type gatewayClient struct {
	base string
	http *http.Client
}

func newGatewayClient(base string) *gatewayClient {
	// No client timeout. Inline dispatch can run a full pipeline and
	// the request context already carries cancellation.
	return &gatewayClient{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{},
	}
}

// Submit posts one payload to /process and returns the decoded body
// with the HTTP status code.
func (c *gatewayClient) Submit(ctx context.Context, payload []byte) (map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// Status fetches the stored document for one job.
func (c *gatewayClient) Status(ctx context.Context, jobID string) (map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status/"+jobID, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *gatewayClient) do(req *http.Request) (map[string]any, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("reach gateway at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read gateway response: %w", err)
	}
	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return payload, resp.StatusCode, nil
}

// gatewayErrorMessage pulls the error field every non-2xx gateway body
// carries.
func gatewayErrorMessage(payload map[string]any) string {
	if msg, ok := payload["error"].(string); ok && msg != "" {
		return msg
	}
	return "unexpected gateway response"
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

// Package remote implements the HTTP backend client the sync queue replays
// against.
//
// The core needs exactly three things from the backend: record an
// interaction, update a user setting, and answer whether the session is
// authenticated. Everything else about the backend is out of scope.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexyapp/lexy/internal/syncq"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 10 * time.Second

// Client is a JSON-over-HTTP implementation of syncq.Backend.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a Client for the given backend base URL and bearer
// token. An empty token makes IsAuthenticated report false, which turns
// replay passes into no-ops.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
}

// RecordInteraction posts one progress payload to the backend.
func (c *Client) RecordInteraction(ctx context.Context, payload json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/v1/interactions", payload)
}

// UpdateUserSetting puts one setting value to the backend.
func (c *Client) UpdateUserSetting(ctx context.Context, namespace, key, value string) error {
	body, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return fmt.Errorf("%w: marshal setting body: %v", syncq.ErrRemoteCall, err)
	}
	path := fmt.Sprintf("/v1/settings/%s/%s", url.PathEscape(namespace), url.PathEscape(key))
	return c.do(ctx, http.MethodPut, path, body)
}

// IsAuthenticated reports whether the client holds credentials. The check
// is local: a token that the backend later rejects surfaces as an
// unauthenticated error on the call itself.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.token != ""
}

// do executes one JSON request and maps the response onto the queue's error
// taxonomy: 401/403 to ErrRemoteUnauthenticated, any other non-2xx or
// transport failure to ErrRemoteCall.
func (c *Client) do(ctx context.Context, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", syncq.ErrRemoteCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", syncq.ErrRemoteCall, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s: status %d", syncq.ErrRemoteUnauthenticated, method, path, resp.StatusCode)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s %s: status %d: %s", syncq.ErrRemoteCall, method, path, resp.StatusCode, snippet)
	}
}

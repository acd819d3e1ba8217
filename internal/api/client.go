// Package api is the REST collaborator used by the presence state machine
// and the push subscription manager.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/workpresence/internal/model"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client is a thin HTTP client for the attendance backend. It handles
// Bearer token authentication, JSON marshaling, and automatic retry with
// exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PunchStatus fetches the current punch state.
func (c *Client) PunchStatus(ctx context.Context) (*PunchStatus, error) {
	var st PunchStatus
	if err := c.do(ctx, http.MethodGet, "/punches/status", nil, &st); err != nil {
		return nil, fmt.Errorf("api.PunchStatus: %w", err)
	}
	return &st, nil
}

// PunchIn opens a punch session.
func (c *Client) PunchIn(ctx context.Context) (*PunchStatus, error) {
	var st PunchStatus
	if err := c.do(ctx, http.MethodPost, "/punches/in", nil, &st); err != nil {
		return nil, fmt.Errorf("api.PunchIn: %w", err)
	}
	return &st, nil
}

// PunchOut closes the open punch session.
func (c *Client) PunchOut(ctx context.Context) error {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/punches/out", nil, &resp); err != nil {
		return fmt.Errorf("api.PunchOut: %w", err)
	}
	return nil
}

// BreakStatus fetches the latest break state of the open punch.
func (c *Client) BreakStatus(ctx context.Context) (*BreakStatus, error) {
	var st BreakStatus
	if err := c.do(ctx, http.MethodGet, "/breaks/status", nil, &st); err != nil {
		return nil, fmt.Errorf("api.BreakStatus: %w", err)
	}
	return &st, nil
}

// BreakDuration fetches the total break minutes of the open punch.
func (c *Client) BreakDuration(ctx context.Context) (int, error) {
	var d BreakDuration
	if err := c.do(ctx, http.MethodGet, "/breaks/duration", nil, &d); err != nil {
		return 0, fmt.Errorf("api.BreakDuration: %w", err)
	}
	return d.TotalMinutes, nil
}

// RecordBreak appends a break boundary to the server timeline.
func (c *Client) RecordBreak(ctx context.Context, ev model.BreakEvent) error {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/breaks", ev, &resp); err != nil {
		return fmt.Errorf("api.RecordBreak: %w", err)
	}
	return nil
}

// SubmitReport saves the end-of-shift report.
func (c *Client) SubmitReport(ctx context.Context, draft model.ReportDraft) error {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/reports", draft, &resp); err != nil {
		return fmt.Errorf("api.SubmitReport: %w", err)
	}
	return nil
}

// VAPIDPublicKey fetches the application server key used to create push
// subscriptions.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var key VAPIDKey
	if err := c.do(ctx, http.MethodGet, "/users/vapid-public-key", nil, &key); err != nil {
		return "", fmt.Errorf("api.VAPIDPublicKey: %w", err)
	}
	return key.PublicKey, nil
}

// SubscribePush upserts a push subscription in the server registry.
func (c *Client) SubscribePush(ctx context.Context, rec model.PushSubscriptionRecord) error {
	if err := c.do(ctx, http.MethodPost, "/users/subscribe-push", rec, nil); err != nil {
		return fmt.Errorf("api.SubscribePush: %w", err)
	}
	return nil
}

// UnsubscribePush removes a push subscription from the server registry.
func (c *Client) UnsubscribePush(ctx context.Context, rec model.PushSubscriptionRecord) error {
	if err := c.do(ctx, http.MethodPost, "/users/unsubscribe-push", rec, nil); err != nil {
		return fmt.Errorf("api.UnsubscribePush: %w", err)
	}
	return nil
}

// do builds the request, handles auth, rate limiting with exponential
// backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("loading bearer token: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// The body reader is consumed by each attempt.
		var bodyReader io.Reader
		if data != nil {
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = rejection(resp.StatusCode, method, path, respBody)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Path: path, Message: rejection(resp.StatusCode, method, path, respBody).Message}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return rejection(resp.StatusCode, method, path, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// rejection builds a ServerRejection, preferring the body's message field.
func rejection(status int, method, path string, body []byte) *ServerRejection {
	rej := &ServerRejection{StatusCode: status, Method: method, Path: path}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		switch {
		case er.Message != "":
			rej.Message = er.Message
		case er.Error != "":
			rej.Message = er.Error
		}
	}
	if rej.Message == "" {
		rej.Message = strings.TrimSpace(string(body))
	}
	if rej.Message == "" {
		rej.Message = fmt.Sprintf("unexpected status %d on %s %s", status, method, path)
	}
	return rej
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

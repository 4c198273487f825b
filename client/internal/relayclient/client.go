package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ragchat/answerrelay/pkg/relay"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// StatusError is returned when the relay answers with a non-200 status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned %d", e.Code)
	}
	return fmt.Sprintf("relay returned %d: %s", e.Code, e.Message)
}

// Client talks to a single relay-server instance.
type Client struct {
	base string
	http *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the relay at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("relayclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("relayclient: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the relay base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Poll claims the pending answer for userID. The bool result is false when
// the relay has nothing for that user. A successful Poll with an answer
// removes it from the relay.
func (c *Client) Poll(ctx context.Context, userID string) (*relay.Answer, bool, error) {
	if userID == "" {
		return nil, false, errors.New("relayclient: empty user id")
	}

	var body relay.PollResponse
	if err := c.do(ctx, http.MethodGet, "/poll/"+url.PathEscape(userID), nil, &body); err != nil {
		return nil, false, fmt.Errorf("relayclient: poll %q: %w", userID, err)
	}
	if !body.Found() {
		return nil, false, nil
	}

	return &relay.Answer{
		UserID:    body.UserID,
		Answer:    body.Answer,
		Timestamp: body.Timestamp,
	}, true, nil
}

// Health reads the relay's health report.
func (c *Client) Health(ctx context.Context) (*relay.HealthResponse, error) {
	var body relay.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body); err != nil {
		return nil, fmt.Errorf("relayclient: health: %w", err)
	}
	if body.Status != relay.StatusHealthy {
		return nil, fmt.Errorf("relayclient: health: unexpected status %q", body.Status)
	}
	return &body, nil
}

// Push delivers an answer to the relay as the producer would.
func (c *Client) Push(ctx context.Context, req relay.PushRequest) (*relay.PushResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("relayclient: encode push: %w", err)
	}

	var body relay.PushResponse
	if err := c.do(ctx, http.MethodPost, "/webhook", payload, &body); err != nil {
		return nil, fmt.Errorf("relayclient: push: %w", err)
	}
	return &body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e relay.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

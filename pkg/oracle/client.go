package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
)

const (
	secretHeader               = "X-Webhook-Secret"
	messageType                = "user_message"
	responseReadLimit    int64 = 1 << 20
	errorBodyReadLimit   int64 = 1024
	defaultClientTimeout       = 15 * time.Second
)

// Message is a single prompt sent to the oracle webhook.
type Message struct {
	Prompt   string
	ThreadID *string
}

type webhookPayload struct {
	Message  string  `json:"message"`
	ThreadID *string `json:"threadId"`
	Type     string  `json:"type"`
}

// Client posts prompts to the generative-model webhook and returns its raw reply.
type Client struct {
	httpClient *http.Client
	webhookURL string
	secret     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithWebhookURL overrides the configured webhook endpoint.
func WithWebhookURL(webhookURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(webhookURL); trimmed != "" {
			c.webhookURL = trimmed
		}
	}
}

// NewClient builds a webhook client. An empty secret is accepted; Configured
// reports it so callers can refuse to serve turns.
func NewClient(webhookURL, secret string, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		webhookURL: strings.TrimSpace(webhookURL),
		secret:     strings.TrimSpace(secret),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Configured reports whether the shared secret and endpoint are present.
func (c *Client) Configured() bool {
	return c != nil && c.secret != "" && c.webhookURL != ""
}

// Send posts msg and returns the response body verbatim. Deadlines come from ctx.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if !c.Configured() {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "oracle webhook not configured")
	}

	payload, err := json.Marshal(webhookPayload{
		Message:  msg.Prompt,
		ThreadID: msg.ThreadID,
		Type:     messageType,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal oracle request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build oracle request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(secretHeader, c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute oracle request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "oracle request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read oracle response")
	}
	return string(body), nil
}

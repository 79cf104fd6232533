// Package chat implements the completion collaborator: an HTTP endpoint
// accepting {messages, model, temperature, max_tokens} and answering
// with either a single JSON completion or a server-sent-event token
// stream terminated by "data: [DONE]".
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// StatusError is a non-2xx response from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint returned %d: %s", e.Code, e.Body)
}

// IsRateLimited reports whether an error is an HTTP 429 response.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// Client talks to the completion endpoint.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a completion client. A nil logger discards logs.
func NewClient(endpoint, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
		logger:   logger,
	}
}

func (c *Client) post(ctx context.Context, req Request) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return resp, nil
}

// Complete performs a non-streaming completion and returns the full
// response text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return extractContent(body), nil
}

// Stream performs a streaming completion, invoking onToken for every
// streamed token, and returns the accumulated text.
func (c *Client) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readEventStream(resp.Body, onToken)
}

// extractContent pulls the completion text out of a response document,
// accepting both chat-completion and bare {content} shapes.
func extractContent(body []byte) string {
	if r := gjson.GetBytes(body, "choices.0.message.content"); r.Exists() {
		return r.String()
	}
	if r := gjson.GetBytes(body, "choices.0.delta.content"); r.Exists() {
		return r.String()
	}
	if r := gjson.GetBytes(body, "content"); r.Exists() {
		return r.String()
	}
	return string(body)
}

// extractToken pulls the token text from one stream chunk; chunks
// without content (role markers, keep-alives) yield "".
func extractToken(chunk []byte) string {
	if r := gjson.GetBytes(chunk, "choices.0.delta.content"); r.Exists() {
		return r.String()
	}
	if r := gjson.GetBytes(chunk, "content"); r.Exists() {
		return r.String()
	}
	return ""
}

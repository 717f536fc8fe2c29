package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// unknownError is recorded when a reply carries neither an answer nor an error message
const unknownError = "Unknown error"

// HTTPClient is the subset of *http.Client the service client needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles communication with the question-answering service.
// Timeouts are taken from the caller's context; the client never retries.
type Client struct {
	baseURL    string
	healthPath string
	askPath    string
	debug      bool
	httpClient HTTPClient
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHealthPath sets the health endpoint path (some deployments expose /status)
func WithHealthPath(path string) Option {
	return func(c *Client) { c.healthPath = path }
}

// WithAskPath sets the ask endpoint path
func WithAskPath(path string) Option {
	return func(c *Client) { c.askPath = path }
}

// WithDebug adds "debug": true to every ask payload
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new service client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		healthPath: "/health",
		askPath:    "/ask",
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HealthCheck verifies that the service is reachable.
// Any 2xx status is healthy; the body may name the loaded document.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	url := c.baseURL + c.healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "create health request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", "url", url, "error", err)
		return nil, &TransportError{Op: "health check", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "read health response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("health check rejected", "url", url, "status", resp.StatusCode)
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: serverMessage(resp, body)}
	}

	health := &Health{StatusCode: resp.StatusCode}
	var hb healthBody
	if json.Unmarshal(body, &hb) == nil {
		health.Document = hb.document()
	}
	return health, nil
}

// Ask posts a question and returns the decoded answer
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	jsonData, err := json.Marshal(AskRequest{Question: question, Debug: c.debug})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + c.askPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &TransportError{Op: "create ask request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("ask", "url", url, "question_len", len(question), "debug", c.debug)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "ask request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "read ask response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: serverMessage(resp, body)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &TransportError{Op: "decode ask response", Err: err}
	}
	// An "error" key wins over any answer; a body with neither is an unknown error.
	if raw, ok := fields["error"]; ok {
		return nil, &ServiceError{Message: payloadMessage(raw)}
	}
	if _, ok := fields["answer"]; !ok {
		return nil, &ServiceError{Message: unknownError}
	}

	var answer Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, &TransportError{Op: "decode ask response", Err: err}
	}
	c.logger.Debug("ask answered", "status", resp.StatusCode, "answer_len", len(answer.Answer), "sources", len(answer.Sources))
	return &answer, nil
}

// payloadMessage returns an "error" value as text; non-string values keep their JSON form.
func payloadMessage(raw json.RawMessage) string {
	var msg string
	if json.Unmarshal(raw, &msg) == nil {
		if msg == "" {
			return unknownError
		}
		return msg
	}
	if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
		return s
	}
	return unknownError
}

// serverMessage extracts a readable message from an error response body.
func serverMessage(resp *http.Response, body []byte) string {
	var env errorBody
	if json.Unmarshal(body, &env) == nil {
		switch v := env.Detail.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return http.StatusText(resp.StatusCode)
	}
	const maxLen = 512
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

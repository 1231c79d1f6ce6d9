package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyAnswer is returned when the backend replies without content.
var ErrEmptyAnswer = errors.New("assistant: empty answer")

// OllamaClient talks to an Ollama-compatible /api/chat endpoint.
type OllamaClient struct {
	endpoint string
	options  Options
	http     *http.Client
	logger   Logger
	now      func() time.Time
}

// ClientOption customizes an OllamaClient.
type ClientOption func(*OllamaClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *OllamaClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger records request timings and failures.
func WithLogger(logger Logger) ClientOption {
	return func(c *OllamaClient) {
		c.logger = logger
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *OllamaClient) {
		c.http.Timeout = timeout
	}
}

// NewOllamaClient builds a client for endpoint (e.g. http://localhost:11434).
func NewOllamaClient(endpoint string, options Options, opts ...ClientOption) *OllamaClient {
	c := &OllamaClient{
		endpoint: normalizeEndpoint(endpoint),
		options:  options,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends the whole conversation and returns the assistant's reply.
func (c *OllamaClient) Chat(ctx context.Context, conv Conversation) (string, error) {
	if c == nil {
		return "", fmt.Errorf("assistant: client is nil")
	}
	if conv.Len() == 0 {
		return "", fmt.Errorf("assistant: chat requires at least one message")
	}
	payload, err := json.Marshal(chatRequest{
		Model:    c.options.Model,
		Messages: conv.Messages(),
		Stream:   false,
		Options:  c.requestOptions(),
	})
	if err != nil {
		return "", fmt.Errorf("assistant: marshal request: %w", err)
	}
	started := c.now()
	answer, err := c.post(ctx, payload)
	elapsed := c.now().Sub(started).Round(time.Millisecond)
	if err != nil {
		if c.logger != nil {
			c.logger.Errorf("chat %s at %s failed after %s: %v", c.options.Model, c.endpoint, elapsed, err)
		}
		return "", err
	}
	if c.logger != nil {
		c.logger.Debugf("chat %s answered in %s (%d turns, %d chars)", c.options.Model, elapsed, conv.Len(), len(answer))
	}
	return answer, nil
}

func (c *OllamaClient) requestOptions() map[string]any {
	opts := map[string]any{
		"temperature": c.options.Temperature,
	}
	if c.options.NumCtx > 0 {
		opts["num_ctx"] = c.options.NumCtx
	}
	if c.options.TopP != nil {
		opts["top_p"] = *c.options.TopP
	}
	return opts
}

func (c *OllamaClient) post(ctx context.Context, payload []byte) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("assistant: create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(request)
	if err != nil {
		return "", fmt.Errorf("assistant: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("assistant: read response: %w", err)
	}
	var decoded chatResponse
	decodeErr := json.Unmarshal(body, &decoded)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && strings.TrimSpace(decoded.Error) != "" {
			return "", fmt.Errorf("assistant: status %s: %s", resp.Status, decoded.Error)
		}
		return "", fmt.Errorf("assistant: status %s", resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("assistant: decode response: %w", decodeErr)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("assistant: backend error: %s", decoded.Error)
	}
	if strings.TrimSpace(decoded.Message.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return decoded.Message.Content, nil
}

func normalizeEndpoint(endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "http://localhost:11434"
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	return strings.TrimSuffix(trimmed, "/api")
}

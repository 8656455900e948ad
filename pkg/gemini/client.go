// Package gemini is a Gemini API chat client implementing the agent's
// Model interfaces: synchronous chat, SSE token streaming, and one-shot
// text generation for the title path.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shahryar908/researchy/pkg/agent"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-pro"
	defaultTimeout = 120 * time.Second
)

// Config holds Gemini client configuration.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the generation model to use.
	Model string

	// BaseURL is the API base URL.
	BaseURL string

	// Temperature for generation. Zero means API default.
	Temperature float64

	// Timeout for API requests. Streaming requests ignore it and rely
	// on context cancellation.
	Timeout time.Duration
}

// Client talks to the Gemini REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Gemini client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Chat sends the message history and bound tools, returning the model's
// next message.
func (c *Client) Chat(ctx context.Context, messages []agent.Message, tools []agent.Tool) (agent.Message, error) {
	reqBody, err := buildRequest(messages, tools, c.cfg.Temperature)
	if err != nil {
		return agent.Message{}, err
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	respBody, err := c.doRequest(ctx, url, raw)
	if err != nil {
		return agent.Message{}, err
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return agent.Message{}, fmt.Errorf("parse response: %w", err)
	}

	return resp.toMessage()
}

// Generate produces plain text from a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := c.Chat(ctx, []agent.Message{agent.User(prompt)}, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// doRequest posts a JSON body and returns the response body, mapping
// non-success statuses to errors. One attempt, no retries; failures are
// reported to the caller, never masked.
func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("gemini API error: %s (status %d)", errResp.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("gemini API error: status %d", resp.StatusCode)
	}

	return respBody, nil
}

var (
	_ agent.Model     = (*Client)(nil)
	_ agent.TextModel = (*Client)(nil)
)

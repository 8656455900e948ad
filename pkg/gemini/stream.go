package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shahryar908/researchy/pkg/agent"
)

// ChatStream sends the message history and streams text deltas through
// onDelta as they arrive. The accumulated message, including any tool
// calls, is returned once the stream ends.
func (c *Client) ChatStream(ctx context.Context, messages []agent.Message, tools []agent.Tool, onDelta func(string)) (agent.Message, error) {
	reqBody, err := buildRequest(messages, tools, c.cfg.Temperature)
	if err != nil {
		return agent.Message{}, err
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return agent.Message{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	// Streams can outlive the configured request timeout. A dedicated
	// client without one is used; the context bounds the request.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return agent.Message{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return agent.Message{}, fmt.Errorf("gemini API error: %s (status %d)", errResp.Error.Message, resp.StatusCode)
		}
		return agent.Message{}, fmt.Errorf("gemini API error: status %d", resp.StatusCode)
	}

	msg := agent.Message{Role: agent.RoleAssistant}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return agent.Message{}, fmt.Errorf("parse stream chunk: %w", err)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		for _, p := range chunk.Candidates[0].Content.Parts {
			if p.Text != "" {
				msg.Content += p.Text
				if onDelta != nil {
					onDelta(p.Text)
				}
			}
			if p.FunctionCall != nil {
				msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
					ID:   "call_" + uuid.NewString()[:8],
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return agent.Message{}, fmt.Errorf("read stream: %w", err)
	}

	return msg, nil
}

var _ agent.StreamingModel = (*Client)(nil)

// Package history loads prior conversation turns from the main backend
// service. Failures never block a chat request; a conversation with
// unreachable history simply starts fresh.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/cache"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = 30 * time.Second

	// internalHeader marks service-to-service calls so the backend
	// skips user auth.
	internalHeader = "X-Internal-Request"
)

// Turn is one stored message as the backend returns it.
type Turn struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// ToolCall is a stored tool invocation on an assistant turn.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Config holds history loader configuration.
type Config struct {
	// BackendURL is the base URL of the main backend service.
	BackendURL string

	// Timeout for history requests.
	Timeout time.Duration

	// CacheTTL bounds how stale a cached history may be. Kept short so
	// consecutive turns in the same conversation see recent messages.
	CacheTTL time.Duration

	// Cache memoizes fetched histories. Optional.
	Cache cache.Cache

	// Logger for fetch failures. Optional.
	Logger *slog.Logger
}

// Loader fetches conversation history over HTTP.
type Loader struct {
	cfg        Config
	httpClient *http.Client
}

// NewLoader creates a history loader.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Load returns the prior turns of a conversation as agent messages.
// Any failure is logged and an empty history returned.
func (l *Loader) Load(ctx context.Context, conversationID string) []agent.Message {
	if conversationID == "" {
		return nil
	}

	key := cache.ShortKey("history", conversationID)
	if l.cfg.Cache != nil {
		if raw, err := l.cfg.Cache.Get(ctx, key); err == nil {
			var turns []Turn
			if err := json.Unmarshal(raw, &turns); err == nil {
				return toMessages(turns)
			}
		}
	}

	turns, err := l.fetch(ctx, conversationID)
	if err != nil {
		l.cfg.Logger.Warn("history fetch failed, starting fresh",
			"conversation_id", conversationID, "error", err)
		return nil
	}

	if l.cfg.Cache != nil {
		if raw, err := json.Marshal(turns); err == nil {
			_ = l.cfg.Cache.Set(ctx, key, raw, l.cfg.CacheTTL)
		}
	}

	return toMessages(turns)
}

func (l *Loader) fetch(ctx context.Context, conversationID string) ([]Turn, error) {
	url := fmt.Sprintf("%s/internal/conversation/%s/history", l.cfg.BackendURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(internalHeader, "true")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Messages []Turn `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}

	return payload.Messages, nil
}

// toMessages converts stored turns to agent messages, dropping roles
// the agent does not replay.
func toMessages(turns []Turn) []agent.Message {
	msgs := make([]agent.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "user":
			msgs = append(msgs, agent.User(t.Content))
		case "assistant", "ai":
			calls := make([]agent.ToolCall, len(t.ToolCalls))
			for i, c := range t.ToolCalls {
				calls[i] = agent.ToolCall{ID: c.ID, Name: c.Name, Args: c.Args}
			}
			msgs = append(msgs, agent.Assistant(t.Content, calls...))
		}
	}
	return msgs
}

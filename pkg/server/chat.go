package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/relay"
	"github.com/shahryar908/researchy/pkg/sse"
	"github.com/shahryar908/researchy/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// ChatRequest is the JSON body for /api/chat and /api/chat/stream.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
}

// ToolCallInfo describes one tool invocation in a chat response.
type ToolCallInfo struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ChatResponse is the JSON response for /api/chat.
type ChatResponse struct {
	Response  string         `json:"response"`
	ToolCalls []ToolCallInfo `json:"tool_calls,omitempty"`
	UserID    string         `json:"user_id"`
}

// TitleRequest is the JSON body for /api/generate-title.
type TitleRequest struct {
	FirstMessage string `json:"first_message"`
	Response     string `json:"response,omitempty"`
}

// TitleResponse is the JSON response for /api/generate-title.
type TitleResponse struct {
	Title string `json:"title"`
}

func (s *Server) parseChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return ChatRequest{}, false
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return ChatRequest{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return ChatRequest{}, false
	}
	return req, true
}

// buildState assembles the agent state for a request: prior turns from
// the history backend plus the new user message under a fresh system
// prompt.
func (s *Server) buildState(r *http.Request, req ChatRequest) agent.State {
	ctx := r.Context()

	var prior []agent.Message
	if s.cfg.History != nil && req.ConversationID != "" {
		if s.cfg.Tracer != nil {
			hctx, span := s.cfg.Tracer.StartHistoryLoad(ctx, req.ConversationID)
			prior = s.cfg.History.Load(hctx, req.ConversationID)
			span.End()
		} else {
			prior = s.cfg.History.Load(ctx, req.ConversationID)
		}
	}

	return agent.State{
		Messages: agent.BuildContext(prior, req.Message, req.UserName),
		UserID:   req.UserID,
		UserName: req.UserName,
	}
}

func (s *Server) recordChat(endpoint string, span trace.Span, stats agent.Stats, latency time.Duration) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordChat(endpoint, stats.Turns)
	}
	if span != nil {
		telemetry.RecordChatResult(span, stats.Turns, stats.ToolCalls, latency)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChatRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var reqSpan trace.Span
	if s.cfg.Tracer != nil {
		ctx, reqSpan = s.cfg.Tracer.StartRequest(ctx, "/api/chat")
		defer reqSpan.End()
		r = r.WithContext(ctx)
	}

	state := s.buildState(r, req)
	start := time.Now()

	reply, stats, err := s.cfg.Agent.Run(ctx, state)
	if err != nil {
		if reqSpan != nil {
			telemetry.RecordError(reqSpan, err)
		}
		s.cfg.Logger.Error("chat request failed", "conversation_id", req.ConversationID, "error", err)
		if errors.Is(err, agent.ErrNoResponse) {
			writeError(w, http.StatusInternalServerError, "No response from agent")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordChat("/api/chat", reqSpan, stats, time.Since(start))
	s.cfg.Logger.Info("chat completed",
		"conversation_id", req.ConversationID,
		"turns", stats.Turns,
		"latency", time.Since(start))

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  reply.Content,
		ToolCalls: toolCallInfos(reply.ToolCalls),
		UserID:    req.UserID,
	})
}

func toolCallInfos(calls []agent.ToolCall) []ToolCallInfo {
	if len(calls) == 0 {
		return nil
	}
	infos := make([]ToolCallInfo, len(calls))
	for i, c := range calls {
		infos[i] = ToolCallInfo{ID: c.ID, Name: c.Name, Args: c.Args}
	}
	return infos
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChatRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var reqSpan trace.Span
	if s.cfg.Tracer != nil {
		ctx, reqSpan = s.cfg.Tracer.StartRequest(ctx, "/api/chat/stream")
		defer reqSpan.End()
		r = r.WithContext(ctx)
	}

	writer := sse.NewWriter(w)
	if writer == nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	writer.UserID = req.UserID

	state := s.buildState(r, req)
	rel := relay.New(writer)
	start := time.Now()

	_ = writer.SendStart()
	_, stats, err := s.cfg.Agent.RunStream(ctx, state, func(ev agent.Event) {
		if herr := rel.Handle(ev); herr != nil {
			// Client gone; the agent loop finishes on its own.
			s.cfg.Logger.Debug("stream write failed", "error", herr)
		}
	})
	if err != nil {
		if reqSpan != nil {
			telemetry.RecordError(reqSpan, err)
		}
		s.cfg.Logger.Error("chat stream failed", "conversation_id", req.ConversationID, "error", err)
		_ = writer.SendError(err.Error())
		return
	}

	s.recordChat("/api/chat/stream", reqSpan, stats, time.Since(start))
	var toolCalls any
	if infos := toolCallInfos(rel.Tools()); infos != nil {
		toolCalls = infos
	}
	_ = writer.SendComplete(rel.Sent(), toolCalls)
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.FirstMessage) == "" {
		writeError(w, http.StatusBadRequest, "first_message is required")
		return
	}

	title := agent.GenerateTitle(r.Context(), s.cfg.TitleModel, req.FirstMessage, req.Response)
	writeJSON(w, http.StatusOK, TitleResponse{Title: title})
}

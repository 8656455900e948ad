// Package sse provides Server-Sent Events support for streaming chat
// responses to clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Frame types carried in the stream.
const (
	TypeStart     = "start"
	TypeContent   = "content"
	TypeToolStart = "tool_start"
	TypeToolEnd   = "tool_end"
	TypeComplete  = "complete"
	TypeError     = "error"
)

// Frame is one streamed chat event. Clients switch on Type; the other
// fields are populated per type. Every frame echoes the requesting user
// when the writer has one.
type Frame struct {
	Type string `json:"type"`

	// Content carries a text delta for content frames.
	Content string `json:"content,omitempty"`

	// ToolName names the tool for tool_start and tool_end frames.
	ToolName string `json:"tool_name,omitempty"`

	// Result carries the tool outcome summary for tool_end frames.
	Result string `json:"result,omitempty"`

	// Response carries the full accumulated text on the complete frame.
	Response string `json:"response,omitempty"`

	// ToolCalls lists the tools invoked, on the complete frame.
	ToolCalls any `json:"tool_calls,omitempty"`

	// Error carries the failure message for error frames.
	Error string `json:"error,omitempty"`

	UserID string `json:"user_id,omitempty"`
}

// Writer wraps an http.ResponseWriter for SSE output.
// It sets the required headers and provides methods to send typed frames.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher

	// UserID, when set, is echoed on every frame.
	UserID string
}

// NewWriter prepares the response for SSE streaming.
// Returns nil if the ResponseWriter does not support flushing.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}
}

// SendStart announces the beginning of a response stream.
func (s *Writer) SendStart() error {
	return s.send(Frame{Type: TypeStart})
}

// SendContent emits a text delta.
func (s *Writer) SendContent(delta string) error {
	return s.send(Frame{Type: TypeContent, Content: delta})
}

// SendToolStart announces a tool invocation.
func (s *Writer) SendToolStart(tool string) error {
	return s.send(Frame{Type: TypeToolStart, ToolName: tool})
}

// SendToolEnd announces a finished tool invocation.
func (s *Writer) SendToolEnd(tool string) error {
	return s.send(Frame{Type: TypeToolEnd, ToolName: tool, Result: "Tool completed"})
}

// SendComplete ends the stream with the full response text and the tool
// calls that produced it.
func (s *Writer) SendComplete(response string, toolCalls any) error {
	return s.send(Frame{Type: TypeComplete, Response: response, ToolCalls: toolCalls})
}

// SendError emits an error frame.
func (s *Writer) SendError(errMsg string) error {
	return s.send(Frame{Type: TypeError, Error: errMsg})
}

// send writes a single data-only SSE frame and flushes.
func (s *Writer) send(f Frame) error {
	f.UserID = s.UserID

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

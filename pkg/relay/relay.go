// Package relay bridges agent events onto an SSE stream. Models that
// stream true deltas pass through directly; models that emit cumulative
// content snapshots are diffed against what has already been sent so
// clients never see repeated text.
package relay

import (
	"strings"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/sse"
)

// Relay forwards agent events to an SSE writer.
type Relay struct {
	w     *sse.Writer
	sent  strings.Builder
	tools []agent.ToolCall
}

// New creates a relay writing to w.
func New(w *sse.Writer) *Relay {
	return &Relay{w: w}
}

// Sent returns the full text forwarded so far.
func (r *Relay) Sent() string {
	return r.sent.String()
}

// Tools returns the tool calls invoked so far, in order.
func (r *Relay) Tools() []agent.ToolCall {
	return r.tools
}

// Handle forwards one agent event as the matching SSE frame.
func (r *Relay) Handle(ev agent.Event) error {
	switch ev.Type {
	case agent.EventText:
		if ev.Text == "" {
			return nil
		}
		r.sent.WriteString(ev.Text)
		return r.w.SendContent(ev.Text)

	case agent.EventSnapshot:
		delta := diff(r.sent.String(), ev.Text)
		if delta == "" {
			return nil
		}
		r.sent.WriteString(delta)
		return r.w.SendContent(delta)

	case agent.EventToolStart:
		r.tools = append(r.tools, ev.Call)
		return r.w.SendToolStart(ev.ToolName)

	case agent.EventToolEnd:
		return r.w.SendToolEnd(ev.ToolName)
	}
	return nil
}

// diff returns the unsent part of a cumulative snapshot. A snapshot
// that does not extend the sent text is treated as entirely new
// content.
func diff(sent, snapshot string) string {
	if sent == "" {
		return snapshot
	}
	if strings.HasPrefix(snapshot, sent) {
		return snapshot[len(sent):]
	}
	return snapshot
}

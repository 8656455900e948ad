// Package agent implements the research agent: a typed chat message
// model, a tool registry, the per-turn tool dispatch step, and the
// model-call loop that drives a conversation to a final answer.
package agent

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is a single conversational turn. Tool calls are a first-class
// field: an assistant message with no tool calls has an empty slice, so
// presence is never a runtime attribute probe.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// System constructs a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User constructs a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant constructs an assistant message.
func Assistant(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult constructs a tool result message tagged with the call that
// produced it.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

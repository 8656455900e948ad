package agent

// EventType identifies a streaming event emitted during a turn.
type EventType int

const (
	// EventText is an incremental content delta from the model.
	EventText EventType = iota
	// EventSnapshot is the cumulative content so far, emitted when the
	// model path does not produce token deltas.
	EventSnapshot
	// EventToolStart marks the beginning of a tool invocation.
	EventToolStart
	// EventToolEnd marks the completion of a tool invocation.
	EventToolEnd
)

// Event is a single streaming event for one agent turn.
type Event struct {
	Type     EventType
	Text     string
	ToolName string

	// Call is the full invocation on tool events.
	Call ToolCall
}

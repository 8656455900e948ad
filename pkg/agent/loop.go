package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shahryar908/researchy/pkg/logging"
)

// Model abstracts the chat LLM. Implementations receive the full message
// history and the bound tool set, and return the model's next message,
// which may request tool calls.
type Model interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error)
}

// StreamingModel is an optional capability: implementations emit content
// deltas via onDelta while producing the reply.
type StreamingModel interface {
	Model
	ChatStream(ctx context.Context, messages []Message, tools []Tool, onDelta func(string)) (Message, error)
}

// ErrNoResponse indicates the model produced no reply within the
// iteration cap.
var ErrNoResponse = errors.New("no response from agent")

// Stats summarizes one completed run.
type Stats struct {
	// Turns is the number of model round trips.
	Turns int
	// ToolCalls is the number of tool invocations dispatched.
	ToolCalls int
}

const defaultMaxTurns = 10

// Agent drives the model-call / tool-dispatch loop.
type Agent struct {
	model    Model
	registry *Registry
	logger   *slog.Logger
	maxTurns int
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxTurns caps model-call iterations per request.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates an agent over a model and tool registry.
func New(model Model, registry *Registry, opts ...Option) *Agent {
	a := &Agent{
		model:    model,
		registry: registry,
		logger:   logging.Discard(),
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tools returns the agent's registered tools.
func (a *Agent) Tools() []Tool {
	return a.registry.All()
}

// Run executes agent turns until the model answers without requesting
// tools, returning the final assistant message and loop statistics.
func (a *Agent) Run(ctx context.Context, state State) (Message, Stats, error) {
	return a.run(ctx, state, nil)
}

// RunStream is Run with event emission: content deltas (or cumulative
// snapshots when the model cannot stream) and tool start/end markers are
// passed to emit as they occur.
func (a *Agent) RunStream(ctx context.Context, state State, emit func(Event)) (Message, Stats, error) {
	return a.run(ctx, state, emit)
}

func (a *Agent) run(ctx context.Context, state State, emit func(Event)) (Message, Stats, error) {
	sm, streaming := a.model.(StreamingModel)
	var stats Stats

	for turn := 0; turn < a.maxTurns; turn++ {
		var reply Message
		var err error

		stats.Turns++
		if emit != nil && streaming {
			reply, err = sm.ChatStream(ctx, state.Messages, a.registry.All(), func(delta string) {
				emit(Event{Type: EventText, Text: delta})
			})
		} else {
			reply, err = a.model.Chat(ctx, state.Messages, a.registry.All())
		}
		if err != nil {
			return Message{}, stats, err
		}

		state.Messages = append(state.Messages, reply)

		if !reply.HasToolCalls() {
			if emit != nil && !streaming && reply.Content != "" {
				emit(Event{Type: EventSnapshot, Text: reply.Content})
			}
			return reply, stats, nil
		}

		a.logger.Debug("dispatching tool calls", "count", len(reply.ToolCalls), "turn", turn)
		stats.ToolCalls += len(reply.ToolCalls)

		if emit != nil {
			// Dispatch one call at a time so start/end markers bracket
			// the actual invocation.
			for _, call := range reply.ToolCalls {
				emit(Event{Type: EventToolStart, ToolName: call.Name, Call: call})
				single := reply
				single.ToolCalls = []ToolCall{call}
				results := Dispatch(ctx, a.registry, state, single, a.logger)
				state.Messages = append(state.Messages, results...)
				emit(Event{Type: EventToolEnd, ToolName: call.Name, Call: call})
			}
		} else {
			results := Dispatch(ctx, a.registry, state, reply, a.logger)
			state.Messages = append(state.Messages, results...)
		}
	}

	return Message{}, stats, ErrNoResponse
}

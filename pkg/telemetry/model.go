package telemetry

import (
	"context"

	"github.com/shahryar908/researchy/pkg/agent"
)

// TraceModel wraps a chat model so every round trip records a span via
// StartModelTurn. When the inner model supports streaming, the wrapper
// does too.
func (p *Provider) TraceModel(model agent.Model, name string) agent.Model {
	tm := tracedModel{inner: model, name: name, provider: p}
	if sm, ok := model.(agent.StreamingModel); ok {
		return &tracedStreamingModel{tracedModel: tm, stream: sm}
	}
	return &tm
}

type tracedModel struct {
	inner    agent.Model
	name     string
	provider *Provider
}

func (m *tracedModel) Chat(ctx context.Context, messages []agent.Message, tools []agent.Tool) (agent.Message, error) {
	ctx, span := m.provider.StartModelTurn(ctx, m.name, len(messages))
	defer span.End()

	reply, err := m.inner.Chat(ctx, messages, tools)
	if err != nil {
		RecordError(span, err)
	}
	return reply, err
}

type tracedStreamingModel struct {
	tracedModel
	stream agent.StreamingModel
}

func (m *tracedStreamingModel) ChatStream(ctx context.Context, messages []agent.Message, tools []agent.Tool, onDelta func(string)) (agent.Message, error) {
	ctx, span := m.provider.StartModelTurn(ctx, m.name, len(messages))
	defer span.End()

	reply, err := m.stream.ChatStream(ctx, messages, tools, onDelta)
	if err != nil {
		RecordError(span, err)
	}
	return reply, err
}

package gemini

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shahryar908/researchy/pkg/agent"
)

// Gemini REST API wire types.

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	Tools             []toolSpec       `json:"tools,omitempty"`
	GenerationConfig  *generationCfg   `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type toolSpec struct {
	FunctionDeclarations []functionDecl `json:"functionDeclarations"`
}

type functionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generationCfg struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// buildRequest converts agent messages and tools into the Gemini wire
// shape. The system message becomes the systemInstruction; tool results
// become functionResponse parts named after the call they answer.
func buildRequest(messages []agent.Message, tools []agent.Tool, temperature float64) (*generateRequest, error) {
	req := &generateRequest{}

	// Map call ids back to function names for tool result messages.
	callNames := make(map[string]string)

	for _, m := range messages {
		switch m.Role {
		case agent.RoleSystem:
			req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}

		case agent.RoleUser:
			req.Contents = append(req.Contents, content{
				Role:  "user",
				Parts: []part{{Text: m.Content}},
			})

		case agent.RoleAssistant:
			var parts []part
			if m.Content != "" {
				parts = append(parts, part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				callNames[call.ID] = call.Name
				parts = append(parts, part{FunctionCall: &functionCall{
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(parts) == 0 {
				parts = []part{{Text: ""}}
			}
			req.Contents = append(req.Contents, content{Role: "model", Parts: parts})

		case agent.RoleTool:
			name, ok := callNames[m.ToolCallID]
			if !ok {
				return nil, fmt.Errorf("tool result %q has no matching call", m.ToolCallID)
			}
			req.Contents = append(req.Contents, content{
				Role: "user",
				Parts: []part{{FunctionResponse: &functionResponse{
					Name:     name,
					Response: map[string]any{"result": m.Content},
				}}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]functionDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, functionDecl{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			})
		}
		req.Tools = []toolSpec{{FunctionDeclarations: decls}}
	}

	if temperature > 0 {
		req.GenerationConfig = &generationCfg{Temperature: temperature}
	}

	return req, nil
}

// toMessage converts a Gemini response into an agent message. Gemini
// does not assign call ids; fresh ids are generated so dispatch results
// can be correlated.
func (r *generateResponse) toMessage() (agent.Message, error) {
	if len(r.Candidates) == 0 {
		return agent.Message{}, fmt.Errorf("no candidates in response")
	}

	msg := agent.Message{Role: agent.RoleAssistant}
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Text != "" {
			msg.Content += p.Text
		}
		if p.FunctionCall != nil {
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
				ID:   "call_" + uuid.NewString()[:8],
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			})
		}
	}

	return msg, nil
}

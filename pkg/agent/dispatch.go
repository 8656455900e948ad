package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// RenderToolName is the tool whose arguments get session context
// auto-filled during dispatch.
const RenderToolName = "render_latex_pdf"

// State carries the conversation plus session-scoped identity used to
// enrich tool arguments.
type State struct {
	Messages []Message
	UserID   string
	UserName string
}

// Dispatch executes the tool calls requested by the last assistant
// message. Each call is invoked synchronously and its failure isolated:
// an error becomes an error-content tool message tagged with the call id,
// and the batch always continues. Result order matches request order.
// A call naming an unregistered tool produces an error message rather
// than being dropped, so the model can recover.
func Dispatch(ctx context.Context, reg *Registry, state State, last Message, logger *slog.Logger) []Message {
	if !last.HasToolCalls() {
		return nil
	}

	var results []Message
	for _, call := range last.ToolCalls {
		tool, ok := reg.Resolve(call.Name)
		if !ok {
			logger.Warn("unknown tool requested", "tool", call.Name, "call_id", call.ID)
			results = append(results, ToolResult(call.ID,
				fmt.Sprintf("Error executing %s: unknown tool", call.Name)))
			continue
		}

		args := call.Args
		if call.Name == RenderToolName {
			args = fillSessionArgs(args, state)
		}

		content, err := tool.Invoke(ctx, args)
		if err != nil {
			logger.Warn("tool failed", "tool", call.Name, "call_id", call.ID, "error", err)
			results = append(results, ToolResult(call.ID,
				fmt.Sprintf("Error executing %s: %v", call.Name, err)))
			continue
		}

		results = append(results, ToolResult(call.ID, content))
	}

	return results
}

// fillSessionArgs copies the argument map and adds user_id/user_name
// from session state when the caller omitted them.
func fillSessionArgs(args map[string]any, state State) map[string]any {
	filled := make(map[string]any, len(args)+2)
	for k, v := range args {
		filled[k] = v
	}
	if state.UserID != "" {
		if _, ok := filled["user_id"]; !ok {
			filled["user_id"] = state.UserID
		}
	}
	if state.UserName != "" {
		if _, ok := filled["user_name"]; !ok {
			filled["user_name"] = state.UserName
		}
	}
	return filled
}

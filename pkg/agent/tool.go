package agent

import "context"

// Tool is an external capability the model can invoke.
type Tool interface {
	// Name is the identifier the model uses to request the tool.
	Name() string

	// Description is shown to the model when binding tools.
	Description() string

	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() map[string]any

	// Invoke runs the tool. The returned string is fed back to the
	// model verbatim as the tool result.
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the registered tools in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry creates a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// FuncTool adapts a function into a Tool.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  map[string]any
	Fn              func(ctx context.Context, args map[string]any) (string, error)
}

func (t *FuncTool) Name() string               { return t.ToolName }
func (t *FuncTool) Description() string        { return t.ToolDescription }
func (t *FuncTool) Parameters() map[string]any { return t.ToolParameters }

func (t *FuncTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return t.Fn(ctx, args)
}

var _ Tool = (*FuncTool)(nil)

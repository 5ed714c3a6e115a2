package tools

import (
	"context"
	"encoding/json"
	"errors"
)

// Handler executes one tool call against a raw JSON input and the sandbox Context.
type Handler func(ctx context.Context, tc *Context, input json.RawMessage) (any, error)

// Tool is one registry entry: its JSON-schema contract plus the gates and
// handler that implement it.
type Tool struct {
	ToolID               string         `json:"tool_id"`
	Description          string         `json:"description"`
	InputSchema          map[string]any `json:"input_schema"`
	OutputSchema         map[string]any `json:"output_schema"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	RequiresNetwork      bool           `json:"requires_network"`
	Handler              Handler        `json:"-"`
}

// Registry is the bounded set of tools the assistant (or the user) may invoke.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) register(t Tool) {
	r.tools[t.ToolID] = t
	r.order = append(r.order, t.ToolID)
}

// Definitions returns every registered tool's public contract, in
// registration order, for the GET /tools listing.
func (r *Registry) Definitions() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id])
	}
	return out
}

// Run applies the gates in order (unknown tool, network gate, confirmation
// gate), then invokes the handler itself.
func (r *Registry) Run(ctx context.Context, toolID string, input json.RawMessage, tc *Context, confirmed bool) (any, error) {
	t, ok := r.tools[toolID]
	if !ok {
		return nil, errors.New("Unknown tool.")
	}
	if t.RequiresNetwork && !tc.AllowNetwork {
		return nil, errors.New("Network tools are disabled.")
	}
	if t.RequiresConfirmation && !confirmed {
		return nil, errors.New("Tool requires explicit confirmation.")
	}
	return t.Handler(ctx, tc, input)
}

// NewDefaultRegistry wires up every built-in tool.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.register(listDirTool())
	r.register(readFileTool())
	r.register(searchTextTool())
	r.register(statPathTool())
	r.register(writeFileTool())
	r.register(gitStatusTool())
	r.register(gitDiffTool())
	r.register(gitShowTool())
	r.register(applyPatchTool())
	r.register(sqlQueryTool())
	r.register(openURLTool())
	r.register(runCommandTool())
	return r
}

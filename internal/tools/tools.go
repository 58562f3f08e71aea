// Package tools provides the tool registry and execution framework
// for the research tools the model can call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dossier-ai/dossier-agent/internal/llm"
)

// Handler executes a tool with decoded arguments and returns the text
// result passed back to the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Registry holds available tools. Registration happens at startup;
// after that the registry is read-only and safe for concurrent use.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry. Re-registering a name replaces
// the previous tool.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Definitions returns all tools in registration order, in the shape
// advertised to the model.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

// Execute runs a tool by name with decoded arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	return tool.Handler(ctx, args)
}

// ExecuteJSON runs a tool by name with JSON-encoded arguments.
func (r *Registry) ExecuteJSON(ctx context.Context, name string, argsJSON string) (string, error) {
	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	return r.Execute(ctx, name, args)
}

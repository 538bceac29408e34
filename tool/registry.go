package tool

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/model"
)

// Registry is a per-agent mapping from tool name to executable handler plus
// its declared input schema. Registration happens once at agent construction;
// the registry is immutable afterwards and safe for concurrent reads.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools. A duplicate name is a
// construction-time error, never a run-time surprise.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry panicking on duplicate names. Intended for
// static tool sets wired at startup.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Definitions exposes the registered tools as model tool definitions, in
// registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Dispatch decodes rawArgs, validates them against the tool's declared input
// schema and invokes the handler. Unknown names, malformed JSON and schema
// mismatches are rejected before the handler runs, so a failed validation has
// no partial side effects.
func (r *Registry) Dispatch(toolCtx *core.ToolContext, name, rawArgs string) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		names := r.Names()
		sort.Strings(names)
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("tool not registered (available: %v)", names),
			Code:    CodeUnknownTool,
		}
	}

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("arguments are not valid JSON: %v", err),
				Code:    CodeValidation,
			}
		}
	}

	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	return t.Call(toolCtx, args)
}

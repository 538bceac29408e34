package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// delegateArgs is the schema of every delegation tool.
type delegateArgs struct {
	Task string `json:"task" description:"The task to hand off, phrased as a complete standalone instruction"`
}

// NewDelegateTool exposes target as a callable tool of another agent. Invoking
// it runs target to completion as a nested run: same run ID, same usage
// tracker, same event stream, depth one greater than the caller, dependencies
// scoped down to what target declares.
//
// The nested run's events appear on the shared stream between the caller's
// ToolCallRequested and ToolCallResult events. A nested failure is returned to
// the caller's model as an ordinary tool error unless it is fatal
// (cancellation, transport), in which case it propagates and aborts the
// calling run too.
func NewDelegateTool(name, description string, target *Agent) tool.Tool {
	return tool.NewFunctionToolFromStruct(
		name,
		description,
		delegateArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			task, _ := args["task"].(string)
			if task == "" {
				return nil, tool.NewToolError(name, "task must not be empty", tool.CodeValidation)
			}

			childCtx, err := toolCtx.RunContext().Child(core.AgentInfo{Name: target.Name()}, target.Requires())
			if err != nil {
				// Missing dependencies surface as a tool error; the calling
				// model may route around the unavailable capability.
				return nil, err
			}

			toolCtx.Logger().Info("delegate.start",
				"from", toolCtx.AgentName(), "to", target.Name(), "depth", childCtx.Depth)

			output, err := target.Run(childCtx, task)
			if err != nil {
				if core.IsFatal(core.KindOf(err)) {
					return nil, err
				}
				return nil, tool.NewToolError(name, toolCtx.Redact(err.Error()), tool.CodeDelegation)
			}
			return output, nil
		},
	)
}

package core

import (
	"context"

	"github.com/hupe1980/agentrelay/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by a run. It exposes the run's dependency values and cancellation context,
// correlates back to the originating model call via the call ID, and lets
// delegation-style tools forward nested events into the run's stream.
type ToolContext struct {
	runCtx *RunContext
	callID string

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its parent RunContext and the
// function call ID reported by the model.
func NewToolContext(runCtx *RunContext, callID string) *ToolContext {
	return &ToolContext{
		runCtx:        runCtx,
		callID:        callID,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the cancellation context of the enclosing run. Tools must
// pass it to every blocking operation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// RunID returns the identifier of the enclosing run tree.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// CallID returns the function call ID correlating model request and tool execution.
func (tc *ToolContext) CallID() string { return tc.callID }

// AgentName returns the name of the invoking agent.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// Depth returns the invoking run's depth in the delegation tree.
func (tc *ToolContext) Depth() int { return tc.runCtx.Depth }

// Deps returns the invoking agent's scoped dependency set.
func (tc *ToolContext) Deps() Deps { return tc.runCtx.Deps }

// Dep returns a single dependency value (empty if absent).
func (tc *ToolContext) Dep(k DepKey) string { return tc.runCtx.Deps.Get(k) }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// RunContext exposes the enclosing run context. Used by delegation tools to
// derive a child context; ordinary tools have no need for it.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }

// Redact strips the run's secret dependency values from msg.
func (tc *ToolContext) Redact(msg string) string {
	return Redact(msg, tc.runCtx.Deps.Secrets())
}

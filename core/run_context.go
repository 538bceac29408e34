package core

import (
	"context"

	"github.com/hupe1980/agentrelay/logging"
)

// AgentInfo carries identifying details about the agent driving a run.
type AgentInfo struct {
	Name string
}

// RunContext is the immutable per-run execution scope handed to an agent's
// control loop and, through ToolContext, to every tool invocation. It carries:
//
//   - The ambient cancellation Context
//   - Run identity (RunID, Agent, Depth)
//   - The agent's scoped dependency values (Deps)
//   - A shared-by-reference UsageTracker for the whole delegation tree
//   - The Emit channel all events of the tree flow into
//
// A RunContext is created once per run (nested runs get their own via Child)
// and never mutated afterwards. It holds no persistent state; it dies with
// the run.
type RunContext struct {
	Context context.Context
	RunID   string
	Agent   AgentInfo
	Depth   int
	Deps    Deps
	Usage   *UsageTracker
	Emit    chan<- Event

	*loggerAdapter
}

// NewRunContext constructs the context for a run. deps is scoped down to
// exactly the required keys; a missing required value fails construction with
// KindDependencyMissing before any model call is made.
func NewRunContext(
	ctx context.Context,
	runID string,
	agent AgentInfo,
	deps Deps,
	required []DepKey,
	usage *UsageTracker,
	depth int,
	emit chan<- Event,
	logger logging.Logger,
) (*RunContext, error) {
	scoped := deps.Scoped(required...)
	if err := scoped.Require(required...); err != nil {
		return nil, err
	}

	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Agent:         agent,
		Depth:         depth,
		Deps:          scoped,
		Usage:         usage,
		Emit:          emit,
		loggerAdapter: newLoggerAdapter(logger),
	}, nil
}

// Child derives the context for a nested run triggered by delegation: the
// target agent's identity, its declared dependency subset, depth+1, and the
// same UsageTracker and Emit channel so nested usage and events fold into the
// parent tree. Dependency scoping applies: values the target does not declare
// are not visible to it.
func (rc *RunContext) Child(agent AgentInfo, required []DepKey) (*RunContext, error) {
	return NewRunContext(
		rc.Context,
		rc.RunID,
		agent,
		rc.Deps,
		required,
		rc.Usage,
		rc.Depth+1,
		rc.Emit,
		rc.Logger(),
	)
}

// Done mirrors context.Context's Done.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// EmitEvent sends ev on the Emit channel, aborting if the context is
// cancelled first.
func (rc *RunContext) EmitEvent(ev Event) error {
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
		return nil
	}
}

// EmitBoundary sends a run boundary event, the opening RunStarted or the
// closing RunCompleted, without the cancellation gate. Boundary events must
// reach the consumer even on a cancelled context, and the stream owner keeps
// draining Emit until the run returns, so a plain send cannot deadlock.
func (rc *RunContext) EmitBoundary(ev Event) {
	rc.Emit <- ev
}

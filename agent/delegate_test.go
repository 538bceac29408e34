package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

func delegationPair(t *testing.T, childTurns []model.Turn, parentTurns []model.Turn, childOpts ...func(o *Options)) (*Agent, *model.ScriptedModel, *model.ScriptedModel) {
	t.Helper()

	childModel := model.NewScriptedModel(childTurns...)
	child := New("worker", childModel, tool.MustRegistry(echoTool()), childOpts...)

	parentModel := model.NewScriptedModel(parentTurns...)
	parent := New("planner", parentModel, tool.MustRegistry(
		NewDelegateTool("delegate_to_worker", "hand a task to the worker", child),
	))

	return parent, parentModel, childModel
}

func TestDelegateNestedSequence(t *testing.T) {
	parent, _, _ := delegationPair(t,
		[]model.Turn{
			model.ToolCallTurn(usage(5), core.FunctionCall{ID: "w-1", Name: "echo", Arguments: `{"message":"sub"}`}),
			model.TextTurn("sub done", usage(5)),
		},
		[]model.Turn{
			model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"do the sub task"}`}),
			model.TextTurn("all done", usage(10)),
		},
	)

	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", core.Deps{}, nil)

	output, err := parent.Run(rc, "plan and delegate")
	require.NoError(t, err)
	stream.Close()

	assert.Equal(t, "all done", output)

	// The nested run's whole sequence sits between the parent's request and
	// result events, one depth down.
	assert.Equal(t, []core.EventKind{
		core.EventRunStarted,         // planner, depth 0
		core.EventToolCallRequested,  // delegate_to_worker, depth 0
		core.EventRunStarted,         // worker, depth 1
		core.EventToolCallRequested,  // echo, depth 1
		core.EventToolCallResult,     // echo, depth 1
		core.EventTextDelta,          // worker, depth 1
		core.EventRunCompleted,       // worker, depth 1
		core.EventToolCallResult,     // delegate_to_worker, depth 0
		core.EventTextDelta,          // planner, depth 0
		core.EventRunCompleted,       // planner, depth 0
	}, stream.Kinds())

	for _, ev := range stream.Events() {
		switch ev.Agent {
		case "planner":
			assert.Equal(t, 0, ev.Depth)
		case "worker":
			assert.Equal(t, 1, ev.Depth)
		}
	}

	// The parent's tool result carries the nested run's output.
	parentResults := stream.AtDepth(0)
	var delegateResult *core.Event
	for i := range parentResults {
		if parentResults[i].Kind == core.EventToolCallResult {
			delegateResult = &parentResults[i]
		}
	}
	require.NotNil(t, delegateResult)
	assert.Equal(t, "sub done", delegateResult.Result)

	// Exactly one terminal per depth; nested usage folds into the top total.
	nestedDone := terminalLast(t, stream.AtDepth(1))
	assert.Equal(t, "sub done", nestedDone.Output)

	topDone := terminalLast(t, stream.AtDepth(0))
	assert.Equal(t, 4, topDone.Usage.Requests, "two parent calls plus two nested calls")
	assert.Equal(t, 30, topDone.Usage.TotalTokens)
}

func TestDelegateNestedFailureSurfacedToParent(t *testing.T) {
	parent, parentModel, _ := delegationPair(t,
		[]model.Turn{
			// The nested agent burns its whole budget without answering.
			model.ToolCallTurn(usage(5), core.FunctionCall{ID: "w-1", Name: "echo", Arguments: `{"message":"x"}`}),
			model.ToolCallTurn(usage(5), core.FunctionCall{ID: "w-2", Name: "echo", Arguments: `{"message":"x"}`}),
		},
		[]model.Turn{
			model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"loop"}`}),
			model.TextTurn("handled the failure", usage(10)),
		},
		func(o *Options) { o.MaxModelCalls = 2 },
	)

	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", core.Deps{}, nil)

	output, err := parent.Run(rc, "delegate something doomed")
	require.NoError(t, err, "nested failure is not fatal to the parent")
	stream.Close()

	assert.Equal(t, "handled the failure", output)

	nestedDone := terminalLast(t, stream.AtDepth(1))
	require.True(t, nestedDone.Failed())
	assert.Equal(t, core.KindIterationLimitExceeded, nestedDone.Failure.Kind)

	// The parent saw a failed tool call and a model-visible error.
	var parentResult core.Event
	for _, ev := range stream.AtDepth(0) {
		if ev.Kind == core.EventToolCallResult {
			parentResult = ev
		}
	}
	require.True(t, parentResult.Failed())

	reqs := parentModel.Requests()
	require.Len(t, reqs, 2)
	fr := reqs[1].Contents[len(reqs[1].Contents)-1].Parts[0].(core.FunctionResponsePart)
	assert.NotEmpty(t, fr.FunctionResponse.Error)

	topDone := terminalLast(t, stream.AtDepth(0))
	assert.False(t, topDone.Failed())
}

func TestDelegateTransportFailureBubbles(t *testing.T) {
	parent, _, _ := delegationPair(t,
		[]model.Turn{model.ErrTurn(errors.New("provider down"))},
		[]model.Turn{
			model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"anything"}`}),
			model.TextTurn("unreachable", usage(10)),
		},
	)

	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", core.Deps{}, nil)

	_, err := parent.Run(rc, "delegate into a dead backend")
	require.Error(t, err)
	stream.Close()

	assert.Equal(t, core.KindTransportFailure, core.KindOf(err))

	nestedDone := terminalLast(t, stream.AtDepth(1))
	assert.Equal(t, core.KindTransportFailure, nestedDone.Failure.Kind)

	topDone := terminalLast(t, stream.AtDepth(0))
	require.True(t, topDone.Failed())
	assert.Equal(t, core.KindTransportFailure, topDone.Failure.Kind)
}

func TestDelegateCancelledMidDelegation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	blocking := tool.NewFunctionTool("block", "waits for cancellation", map[string]any{"type": "object", "properties": map[string]any{}},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			close(started)
			<-toolCtx.Context().Done()
			return nil, toolCtx.Context().Err()
		},
	)

	childModel := model.NewScriptedModel(
		model.ToolCallTurn(usage(5), core.FunctionCall{ID: "w-1", Name: "block", Arguments: `{}`}),
		model.TextTurn("unreachable", usage(5)),
	)
	child := New("worker", childModel, tool.MustRegistry(blocking))

	parentModel := model.NewScriptedModel(
		model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"wait"}`}),
		model.TextTurn("unreachable", usage(10)),
	)
	parent := New("planner", parentModel, tool.MustRegistry(
		NewDelegateTool("delegate_to_worker", "hand off", child),
	))

	rc, stream := testutil.NewRunContext(t, ctx, "planner", core.Deps{}, nil)

	go func() {
		<-started
		cancel()
	}()

	_, err := parent.Run(rc, "delegate and hang")
	require.Error(t, err)
	stream.Close()

	assert.Equal(t, core.KindCancelled, core.KindOf(err))

	// Both runs close with a cancelled terminal: the nested one first, then
	// the parent's, which is the last event on the stream.
	nestedDone := terminalLast(t, stream.AtDepth(1))
	require.True(t, nestedDone.Failed())
	assert.Equal(t, core.KindCancelled, nestedDone.Failure.Kind)

	topDone := terminalLast(t, stream.AtDepth(0))
	require.True(t, topDone.Failed())
	assert.Equal(t, core.KindCancelled, topDone.Failure.Kind)

	events := stream.Events()
	last := events[len(events)-1]
	assert.Equal(t, core.EventRunCompleted, last.Kind)
	assert.Equal(t, 0, last.Depth, "the parent terminal closes the stream")
}

func TestDelegateDependencyScoping(t *testing.T) {
	var seen core.Deps

	spy := tool.NewFunctionTool("spy", "records visible deps", map[string]any{"type": "object", "properties": map[string]any{}},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			seen = toolCtx.Deps()
			return "ok", nil
		},
	)

	childModel := model.NewScriptedModel(
		model.ToolCallTurn(usage(5), core.FunctionCall{ID: "w-1", Name: "spy", Arguments: `{}`}),
		model.TextTurn("done", usage(5)),
	)
	child := New("worker", childModel, tool.MustRegistry(spy), func(o *Options) {
		o.Requires = []core.DepKey{core.DepMailTokenPath}
	})

	parentModel := model.NewScriptedModel(
		model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"spy"}`}),
		model.TextTurn("done", usage(10)),
	)
	parent := New("planner", parentModel, tool.MustRegistry(
		NewDelegateTool("delegate_to_worker", "hand off", child),
	), func(o *Options) {
		o.Requires = []core.DepKey{core.DepSearchAPIKey, core.DepMailTokenPath}
	})

	deps := core.Deps{core.DepSearchAPIKey: "sk-123", core.DepMailTokenPath: "/tmp/token.json"}
	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", deps, parent.Requires())

	_, err := parent.Run(rc, "go")
	require.NoError(t, err)
	stream.Close()

	require.NotNil(t, seen)
	assert.True(t, seen.Has(core.DepMailTokenPath))
	assert.False(t, seen.Has(core.DepSearchAPIKey), "undeclared values are invisible to the nested agent")
}

func TestDelegateMissingDependencyIsToolError(t *testing.T) {
	childModel := model.NewScriptedModel()
	child := New("worker", childModel, tool.MustRegistry(), func(o *Options) {
		o.Requires = []core.DepKey{core.DepMailTokenPath}
	})

	parentModel := model.NewScriptedModel(
		model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":"draft"}`}),
		model.TextTurn("cannot email, answering directly", usage(10)),
	)
	parent := New("planner", parentModel, tool.MustRegistry(
		NewDelegateTool("delegate_to_worker", "hand off", child),
	))

	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", core.Deps{}, nil)

	output, err := parent.Run(rc, "email this")
	require.NoError(t, err, "missing nested dependency is survivable")
	stream.Close()

	assert.Equal(t, "cannot email, answering directly", output)
	assert.Empty(t, childModel.Requests(), "no nested model call without dependencies")

	var result core.Event
	for _, ev := range stream.OfKind(core.EventToolCallResult) {
		result = ev
	}
	require.True(t, result.Failed())
	assert.Equal(t, core.KindDependencyMissing, result.Failure.Kind)

	assert.Empty(t, stream.AtDepth(1), "the nested run never started")
}

func TestDelegateEmptyTask(t *testing.T) {
	parent, _, childModel := delegationPair(t,
		nil,
		[]model.Turn{
			model.ToolCallTurn(usage(10), core.FunctionCall{ID: "p-1", Name: "delegate_to_worker", Arguments: `{"task":""}`}),
			model.TextTurn("retried without delegating", usage(10)),
		},
	)

	rc, stream := testutil.NewRunContext(t, context.Background(), "planner", core.Deps{}, nil)

	_, err := parent.Run(rc, "delegate nothing")
	require.NoError(t, err)
	stream.Close()

	assert.Empty(t, childModel.Requests())

	var result core.Event
	for _, ev := range stream.OfKind(core.EventToolCallResult) {
		result = ev
	}
	require.True(t, result.Failed())
	assert.Equal(t, core.KindToolInputInvalid, result.Failure.Kind)
}

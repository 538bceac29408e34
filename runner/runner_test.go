package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

func usage(total int) model.TokenUsage {
	return model.TokenUsage{PromptTokens: total / 2, CompletionTokens: total - total/2, TotalTokens: total}
}

func collect(t *testing.T, events <-chan core.Event) []core.Event {
	t.Helper()
	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunnerRun(t *testing.T) {
	llm := model.NewScriptedModel(model.TextTurn("hello", usage(10)))
	a := agent.New("solo", llm, tool.MustRegistry())
	r := New(a)

	runID, events, errCh, err := r.Run(context.Background(), "say hello")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	collected := collect(t, events)
	require.NoError(t, <-errCh)

	require.NotEmpty(t, collected)
	assert.Equal(t, core.EventRunStarted, collected[0].Kind)
	last := collected[len(collected)-1]
	assert.Equal(t, core.EventRunCompleted, last.Kind)
	assert.Equal(t, "hello", last.Output)

	assert.Empty(t, r.ActiveRuns(), "finished runs are released")
}

func TestRunnerRunError(t *testing.T) {
	llm := model.NewScriptedModel(model.ErrTurn(errors.New("provider down")))
	a := agent.New("solo", llm, tool.MustRegistry())
	r := New(a)

	_, events, errCh, err := r.Run(context.Background(), "doomed")
	require.NoError(t, err)

	collected := collect(t, events)
	runErr := <-errCh

	require.Error(t, runErr)
	assert.Equal(t, core.KindTransportFailure, core.KindOf(runErr))

	last := collected[len(collected)-1]
	require.True(t, last.Failed())
	assert.Equal(t, core.KindTransportFailure, last.Failure.Kind)
}

func TestRunnerMissingDependency(t *testing.T) {
	llm := model.NewScriptedModel(model.TextTurn("never", usage(1)))
	a := agent.New("solo", llm, tool.MustRegistry(), func(o *agent.Options) {
		o.Requires = []core.DepKey{core.DepSearchAPIKey}
	})
	r := New(a) // no deps configured

	_, _, _, err := r.Run(context.Background(), "needs a key")

	require.Error(t, err)
	assert.Equal(t, core.KindDependencyMissing, core.KindOf(err))
	assert.Empty(t, llm.Requests(), "rejected before any model call")
	assert.Empty(t, r.ActiveRuns())
}

func TestRunnerCancel(t *testing.T) {
	started := make(chan struct{})
	blocking := tool.NewFunctionTool("block", "waits for cancellation",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			close(started)
			<-toolCtx.Context().Done()
			return nil, toolCtx.Context().Err()
		},
	)

	llm := model.NewScriptedModel(
		model.ToolCallTurn(usage(10), core.FunctionCall{ID: "call-1", Name: "block", Arguments: `{}`}),
		model.TextTurn("unreachable", usage(10)),
	)
	a := agent.New("solo", llm, tool.MustRegistry(blocking))
	r := New(a)

	runID, events, errCh, err := r.Run(context.Background(), "block forever")
	require.NoError(t, err)

	go func() {
		<-started
		assert.True(t, r.Cancel(runID))
	}()

	collected := collect(t, events)
	runErr := <-errCh

	require.Error(t, runErr)
	assert.Equal(t, core.KindCancelled, core.KindOf(runErr))

	last := collected[len(collected)-1]
	require.True(t, last.Failed(), "terminal event delivered despite cancellation")
	assert.Equal(t, core.KindCancelled, last.Failure.Kind)

	assert.False(t, r.Cancel(runID), "finished runs are no longer active")
}

func TestRunnerCancelUnknownRun(t *testing.T) {
	llm := model.NewScriptedModel()
	r := New(agent.New("solo", llm, tool.MustRegistry()))

	assert.False(t, r.Cancel("no-such-run"))
}

func TestRunnerConcurrentRuns(t *testing.T) {
	llm := model.NewScriptedModel(
		model.TextTurn("one", usage(10)),
		model.TextTurn("two", usage(10)),
	)
	a := agent.New("solo", llm, tool.MustRegistry())
	r := New(a)

	id1, events1, errCh1, err := r.Run(context.Background(), "first")
	require.NoError(t, err)
	id2, events2, errCh2, err := r.Run(context.Background(), "second")
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	c1 := collect(t, events1)
	c2 := collect(t, events2)
	require.NoError(t, <-errCh1)
	require.NoError(t, <-errCh2)

	outputs := []string{c1[len(c1)-1].Output, c2[len(c2)-1].Output}
	assert.ElementsMatch(t, []string{"one", "two"}, outputs)

	assert.Eventually(t, func() bool { return len(r.ActiveRuns()) == 0 }, time.Second, 10*time.Millisecond)
}

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// Run executes the agent's model/tool loop until the model produces a final
// text answer, the call budget runs out, or a fatal failure occurs.
//
// Event protocol: the run emits RunStarted first, then text deltas and tool
// call events as the loop progresses, and always exactly one RunCompleted
// last, success or failure. All events go to runCtx.Emit in the order they
// happened, tagged with the run's agent name and depth. The caller owns the
// channel and must keep receiving until Run returns.
//
// Tool failures are not fatal: they are recorded as ToolCallResult failures
// and fed back to the model as error function responses so it can retry,
// adjust, or answer without the tool. Only cancellation and model transport
// failures abort the run.
func (a *Agent) Run(runCtx *core.RunContext, prompt string) (string, error) {
	logger := runCtx.Logger()
	logger.Info("run.start", "agent", a.name, "run_id", runCtx.RunID, "depth", runCtx.Depth)

	// RunStarted opens the stream even on a dead context; the loop's first
	// check then closes the run with a cancelled terminal right after it.
	runCtx.EmitBoundary(core.NewRunStartedEvent(a.name, runCtx.Depth))

	transcript := []core.Content{core.NewUserContent(prompt)}

	for call := 1; ; call++ {
		if err := runCtx.Err(); err != nil {
			return "", a.fail(runCtx, core.WrapError(core.KindCancelled, err, "run cancelled"))
		}
		if a.maxModelCalls > 0 && call > a.maxModelCalls {
			return "", a.fail(runCtx, core.NewError(core.KindIterationLimitExceeded,
				"no final answer after %d model calls", a.maxModelCalls))
		}

		final, streamed, err := a.generate(runCtx, transcript)
		if err != nil {
			return "", a.fail(runCtx, err)
		}

		if final.Usage != nil {
			runCtx.Usage.Add(final.Usage.Usage())
		} else {
			runCtx.Usage.Add(core.Usage{Requests: 1})
		}

		transcript = append(transcript, final.Content)

		// Text the backend did not stream (non-streaming providers, or
		// commentary alongside tool calls) is still surfaced as one delta.
		if text := final.Content.Text(); text != "" && !streamed {
			if err := runCtx.EmitEvent(core.NewTextDeltaEvent(a.name, runCtx.Depth, text)); err != nil {
				return "", a.fail(runCtx, core.WrapError(core.KindCancelled, err, "run cancelled"))
			}
		}

		calls := final.Content.FunctionCalls()
		if len(calls) == 0 {
			output := final.Content.Text()
			logger.Info("run.complete", "agent", a.name, "run_id", runCtx.RunID, "model_calls", call)
			runCtx.EmitBoundary(core.NewRunCompletedEvent(a.name, runCtx.Depth, output, nil, runCtx.Usage.Snapshot()))
			return output, nil
		}

		responses, err := a.dispatchAll(runCtx, calls)
		if err != nil {
			return "", a.fail(runCtx, err)
		}
		transcript = append(transcript, responses)
	}
}

// generate performs one model call, forwarding streamed text fragments as
// TextDelta events, and returns the final response plus whether any fragment
// was streamed. Errors are already classified (cancelled or transport).
func (a *Agent) generate(runCtx *core.RunContext, transcript []core.Content) (*model.Response, bool, error) {
	req := model.Request{
		Instructions: a.instructions,
		Contents:     transcript,
		Tools:        a.registry.Definitions(),
		Stream:       a.stream,
	}

	respCh, errCh := a.llm.Generate(runCtx.Context, req)

	var final *model.Response
	streamed := false

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if text := resp.Content.Text(); text != "" {
					streamed = true
					if err := runCtx.EmitEvent(core.NewTextDeltaEvent(a.name, runCtx.Depth, text)); err != nil {
						return nil, false, core.WrapError(core.KindCancelled, err, "run cancelled")
					}
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, false, core.WrapError(core.KindCancelled, err, "run cancelled")
			}
			return nil, false, core.WrapError(core.KindTransportFailure, err, "model call failed")
		}
	}

	if final == nil {
		return nil, false, core.NewError(core.KindTransportFailure, "model stream ended without a final response")
	}
	return final, streamed, nil
}

// dispatchAll executes the requested tool calls in order and returns a tool
// role content carrying one function response per call. Fatal failures (a
// cancelled run, a nested transport failure) abort; everything else becomes an
// error response the model sees on the next call.
func (a *Agent) dispatchAll(runCtx *core.RunContext, calls []core.FunctionCall) (core.Content, error) {
	parts := make([]core.Part, 0, len(calls))

	for _, fc := range calls {
		if err := runCtx.EmitEvent(core.NewToolCallRequestedEvent(a.name, runCtx.Depth, fc.ID, fc.Name, fc.Arguments)); err != nil {
			return core.Content{}, core.WrapError(core.KindCancelled, err, "run cancelled")
		}

		toolCtx := core.NewToolContext(runCtx, fc.ID)
		result, err := a.registry.Dispatch(toolCtx, fc.Name, fc.Arguments)
		if err != nil {
			kind := failureKind(runCtx, err)
			failure := core.NewFailure(kind, core.Redact(err.Error(), runCtx.Deps.Secrets()))

			if emitErr := runCtx.EmitEvent(core.NewToolCallResultEvent(a.name, runCtx.Depth, fc.ID, fc.Name, nil, failure)); emitErr != nil {
				return core.Content{}, core.WrapError(core.KindCancelled, emitErr, "run cancelled")
			}
			if core.IsFatal(kind) {
				return core.Content{}, core.WrapError(kind, err, "tool %s failed fatally", fc.Name)
			}

			runCtx.LogWarn("tool.failed", "agent", a.name, "tool", fc.Name, "kind", string(kind), "error", failure.Message)
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID:    fc.ID,
				Name:  fc.Name,
				Error: fmt.Sprintf("%s: %s", kind, failure.Message),
			}})
			continue
		}

		if err := runCtx.EmitEvent(core.NewToolCallResultEvent(a.name, runCtx.Depth, fc.ID, fc.Name, result, nil)); err != nil {
			return core.Content{}, core.WrapError(core.KindCancelled, err, "run cancelled")
		}
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: result,
		}})
	}

	return core.Content{Role: "tool", Parts: parts}, nil
}

// fail emits the mandatory terminal event carrying a redacted failure payload
// and returns the error unchanged for the caller.
func (a *Agent) fail(runCtx *core.RunContext, err error) error {
	failure := core.FailureFrom(err, runCtx.Deps.Secrets())
	runCtx.LogError("run.failed", "agent", a.name, "run_id", runCtx.RunID, "kind", string(failure.Kind), "error", failure.Message)
	runCtx.EmitBoundary(core.NewRunCompletedEvent(a.name, runCtx.Depth, "", failure, runCtx.Usage.Snapshot()))
	return err
}

// failureKind classifies a dispatch error. A typed core error anywhere in the
// chain wins (delegation surfaces dependency and nested failures that way),
// then the tool's own code mapping, then the default classification.
func failureKind(runCtx *core.RunContext, err error) core.Kind {
	if runCtx.Err() != nil {
		return core.KindCancelled
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var te *tool.ToolError
	if errors.As(err, &te) {
		return te.Kind()
	}
	return core.KindOf(err)
}

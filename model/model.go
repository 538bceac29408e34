package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the agent runtime.
type Request struct {
	Instructions string           `json:"instructions"` // system prompt
	Contents     []core.Content   `json:"contents"`     // transcript converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics reported for one model call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Usage converts the provider report into a single-request core.Usage record.
func (u TokenUsage) Usage() core.Usage {
	return core.Usage{
		Requests:         1,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// Response is a (partial or final) chunk emitted by a model backend. The
// final chunk of a call carries the usage report.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent runtime to drive
// generation. Implementations must honour ctx cancellation, close both
// channels when done, and send at most one error (a transport failure).
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples. It
// maps the last user text of the transcript to a canned completion.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; emits streaming rune chunks then a final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		input := req.Contents[len(req.Contents)-1].Text()
		full := m.responses[input]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: string(r)}}},
				}:
				}
			}
		}

		respCh <- Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: "stop",
			Usage:        &TokenUsage{PromptTokens: len(input), CompletionTokens: len(full), TotalTokens: len(input) + len(full)},
		}
	}()

	return respCh, errCh
}

// Info implements the Model interface.
func (m *MockModel) Info() Info { return m.info }

// Turn scripts one model call of a ScriptedModel: either a sequence of
// responses to emit (the last one non-partial) or a transport error.
type Turn struct {
	Responses []Response
	Err       error
}

// TextTurn scripts a final text answer with a fixed usage report.
func TextTurn(text string, usage TokenUsage) Turn {
	return Turn{Responses: []Response{{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
		Usage:        &usage,
	}}}
}

// ToolCallTurn scripts a turn requesting the given tool invocations.
func ToolCallTurn(usage TokenUsage, calls ...core.FunctionCall) Turn {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return Turn{Responses: []Response{{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
		Usage:        &usage,
	}}}
}

// ErrTurn scripts a transport failure.
func ErrTurn(err error) Turn { return Turn{Err: err} }

// ScriptedModel replays a fixed sequence of turns, one per Generate call,
// regardless of input. It records every request it receives, making the exact
// transcript observable in tests. Safe for use from a single run tree.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []Request
}

// NewScriptedModel builds a model replaying the given turns in order.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Requests returns a copy of all requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model by replaying the next scripted turn.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var turn Turn
	exhausted := m.next >= len(m.turns)
	if !exhausted {
		turn = m.turns[m.next]
		m.next++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if exhausted {
			errCh <- fmt.Errorf("scripted model exhausted after %d turns", len(m.turns))
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		for _, resp := range turn.Responses {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- resp:
			}
		}
	}()

	return respCh, errCh
}

// Info implements the Model interface.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

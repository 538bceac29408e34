package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// Options configures an Agent instance. Use functional options with New to
// override defaults.
type Options struct {
	// Instructions is the system prompt driving the agent's behaviour.
	Instructions string
	// MaxModelCalls bounds the number of model calls per run, guarding
	// against infinite tool-call cycles. 0 means unlimited (not recommended).
	MaxModelCalls int
	// Stream requests incremental text deltas from backends that support it.
	Stream bool
	// Requires declares the dependency keys the agent's tools need. Required
	// values are validated at run context construction, and delegation copies
	// only declared keys to this agent.
	Requires []core.DepKey
}

// Agent pairs a model endpoint with a tool registry and instructions. The
// configuration is immutable after construction; all per-run state lives in
// the RunContext, so one Agent can serve many (nested) runs.
type Agent struct {
	name          string
	llm           model.Model
	registry      *tool.Registry
	instructions  string
	maxModelCalls int
	stream        bool
	requires      []core.DepKey
}

// New creates an agent. The registry may be empty but not nil; duplicate tool
// names have already been rejected at registry construction.
func New(name string, llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instructions:  "You are " + name + ", a helpful AI assistant.",
		MaxModelCalls: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:          name,
		llm:           llm,
		registry:      registry,
		instructions:  opts.Instructions,
		maxModelCalls: opts.MaxModelCalls,
		stream:        opts.Stream,
		requires:      opts.Requires,
	}
}

// Name returns the agent's identifier, used as the Agent field of its events.
func (a *Agent) Name() string { return a.name }

// Requires returns the dependency keys the agent declares.
func (a *Agent) Requires() []core.DepKey { return a.requires }

// Instructions returns the system prompt.
func (a *Agent) Instructions() string { return a.instructions }

// MaxModelCalls returns the per-run model call budget.
func (a *Agent) MaxModelCalls() int { return a.maxModelCalls }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.registry }

// Model returns the configured model endpoint.
func (a *Agent) Model() model.Model { return a.llm }

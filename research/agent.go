// Package research provides the research agent: a web-search-capable agent
// that can hand findings to the email agent for drafting.
package research

import (
	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/mail"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

const instructions = `You are a research assistant. Use the search_web tool to find current,
accurate information before answering. Cite the sources you relied on.

When the user asks you to email, send, or draft your findings, use the
delegate_to_email_agent tool: hand it a complete, standalone task describing
the recipient (if known), the topic, and the findings to include. Report back
what the email agent did.`

// Options configure the research agent.
type Options struct {
	// MaxModelCalls bounds the research loop. Defaults to 10.
	MaxModelCalls int
	// Stream requests incremental output from the model backend.
	Stream bool
	// Search configures the web search tool (endpoint, client, result cap).
	Search []func(o *SearchOptions)
	// Mail configures the email agent reachable through delegation.
	Mail []func(o *mail.Options)
}

// NewAgent wires the research agent: the search_web tool plus a delegation
// tool running the email agent on the same model endpoint. The agent declares
// the search API key and the mail credential paths; delegation scopes the
// mail paths down to the email agent.
func NewAgent(llm model.Model, optFns ...func(o *Options)) (*agent.Agent, error) {
	opts := Options{MaxModelCalls: 10}
	for _, fn := range optFns {
		fn(&opts)
	}

	emailAgent, err := mail.NewAgent(llm, opts.Mail...)
	if err != nil {
		return nil, err
	}

	registry, err := tool.NewRegistry(
		NewSearchTool(opts.Search...),
		agent.NewDelegateTool(
			"delegate_to_email_agent",
			"Hand off a complete email drafting task to the email agent. Include the recipient, subject matter and the findings to convey.",
			emailAgent,
		),
	)
	if err != nil {
		return nil, err
	}

	return agent.New("research_agent", llm, registry, func(o *agent.Options) {
		o.Instructions = instructions
		o.MaxModelCalls = opts.MaxModelCalls
		o.Stream = opts.Stream
		o.Requires = []core.DepKey{
			core.DepSearchAPIKey,
			core.DepMailCredentialsPath,
			core.DepMailTokenPath,
		}
	}), nil
}

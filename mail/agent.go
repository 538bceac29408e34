// Package mail provides the email agent: it composes messages from task
// descriptions and saves them as Gmail drafts via OAuth2.
package mail

import (
	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

const instructions = `You are an email assistant. Given a task describing a message to write,
compose a clear, well-structured email and save it as a draft with the
create_email_draft tool.

Guidelines:
- Write a concise, informative subject line.
- Open with an appropriate greeting and close with a sign-off.
- Keep the body focused on the task's content; do not invent facts.
- Put extra recipients on cc or bcc only when the task asks for them.
- If the task names no recipient, use a sensible placeholder address and say
  so in your final answer.

After creating the draft, report the draft ID, recipient and subject.`

// Options configure the email agent.
type Options struct {
	// MaxModelCalls bounds the drafting loop. Defaults to 5; composing rarely
	// needs more than one tool round-trip.
	MaxModelCalls int
	// Stream requests incremental output from the model backend.
	Stream bool
	// Draft configures the draft tool (endpoint, client, token source).
	Draft []func(o *DraftOptions)
}

// NewAgent wires the email agent with the create_email_draft tool. It
// declares the mail credential paths; runs fail with a dependency error
// before any model call if they are absent.
func NewAgent(llm model.Model, optFns ...func(o *Options)) (*agent.Agent, error) {
	opts := Options{MaxModelCalls: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.NewRegistry(NewDraftTool(opts.Draft...))
	if err != nil {
		return nil, err
	}

	return agent.New("email_agent", llm, registry, func(o *agent.Options) {
		o.Instructions = instructions
		o.MaxModelCalls = opts.MaxModelCalls
		o.Stream = opts.Stream
		o.Requires = []core.DepKey{
			core.DepMailCredentialsPath,
			core.DepMailTokenPath,
		}
	}), nil
}

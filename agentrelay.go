// Package agentrelay implements a runtime for cooperating autonomous agents:
// model-driven control loops that call tools, delegate sub-tasks to other
// independently configured agents, share a usage budget across the whole
// delegation tree and surface all progress as one ordered event stream.
//
// Typical usage:
//  1. Build a model backend (model/anthropic or model/openai)
//  2. Construct agents with their tool registries (research.NewAgent,
//     mail.NewAgent) and wire delegation via agent.NewDelegateTool
//  3. Start runs through runner.New(...).Run and consume the event channel
//
// The reference agents implement a research assistant that searches the web
// and delegates email drafting to a second agent; the runtime itself is
// domain-agnostic.
package agentrelay

// Version is the current release of the agentrelay module.
const Version = "0.1.0"

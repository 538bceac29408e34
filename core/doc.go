// Package core provides the foundational domain types and execution contexts
// of the agentrelay runtime:
//
//   - Events (the immutable, depth-annotated progress stream variants)
//   - RunContext / ToolContext (scoped execution state for runs and tools)
//   - Deps (per-agent dependency injection with delegation scoping)
//   - UsageTracker (the shared request/token accumulator of a run tree)
//   - The error taxonomy and redaction helpers
//
// The package intentionally keeps implementation concerns (model providers,
// concrete agents, stream orchestration) out of scope, exposing small types
// the other packages compose.
package core

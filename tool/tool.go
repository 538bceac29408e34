// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, delegations) with schema
// validated arguments and consistent error handling.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// Tool defines the interface for extending agent capabilities with external
// functions. Tools are registered with a Registry at agent construction and
// are immutable afterwards.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a proper JSON schema for parameters
//   - Pass the ToolContext's Context to every blocking operation
//   - Keep no shared mutable state, so independent calls stay isolated
type Tool interface {
	// Name returns the unique identifier for this tool within a registry.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already-validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes used across tool implementations.
const (
	// CodeValidation marks a schema / argument mismatch (maps to the
	// tool_input_invalid failure kind).
	CodeValidation = "VALIDATION_ERROR"
	// CodeExecution marks an underlying handler failure.
	CodeExecution = "EXECUTION_ERROR"
	// CodeUnknownTool marks dispatch of an unregistered tool name.
	CodeUnknownTool = "UNKNOWN_TOOL"
	// CodeRateLimited marks a provider 429.
	CodeRateLimited = "RATE_LIMITED"
	// CodeAuthFailed marks a provider 401/403.
	CodeAuthFailed = "AUTH_FAILED"
	// CodeCredentialsMissing marks absent credential material at call time.
	CodeCredentialsMissing = "CREDENTIALS_MISSING"
	// CodeTokenRefresh marks an OAuth2 token refresh failure.
	CodeTokenRefresh = "TOKEN_REFRESH_FAILED"
	// CodeDelegation marks a failed nested agent run.
	CodeDelegation = "DELEGATION_FAILED"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes an underlying error stored in Details, keeping typed causes
// visible to errors.Is / errors.As through the wrapping.
func (e *ToolError) Unwrap() error {
	if cause, ok := e.Details.(error); ok {
		return cause
	}
	return nil
}

// Kind maps the tool error code onto the runtime failure taxonomy.
func (e *ToolError) Kind() core.Kind {
	if e.Code == CodeValidation {
		return core.KindToolInputInvalid
	}
	return core.KindToolExecutionFailed
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// ValidationError re-exports the util validation error for callers inspecting
// failure details.
type ValidationError = util.ValidationError

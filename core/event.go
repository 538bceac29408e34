package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the closed set of event variants. Consumers switch
// exhaustively over this set; new kinds are a breaking change.
type EventKind string

const (
	// EventRunStarted opens a run's event sequence.
	EventRunStarted EventKind = "run_started"
	// EventTextDelta carries an incremental fragment of model output text.
	EventTextDelta EventKind = "text_delta"
	// EventToolCallRequested records the model requesting a tool invocation.
	EventToolCallRequested EventKind = "tool_call_requested"
	// EventToolCallResult records the outcome (result or failure) of a tool
	// invocation. For delegation tools the full nested run sequence precedes it.
	EventToolCallResult EventKind = "tool_call_result"
	// EventRunCompleted terminates a run's sequence. Exactly one per run,
	// always last, carrying the final output or failure plus usage totals.
	EventRunCompleted EventKind = "run_completed"
)

// Event is one entry in a run's ordered progress stream. After emission it is
// immutable. Depth locates the emitting run in the delegation tree (0 is the
// top-level run) so a consumer can reconstruct the tree from the flat stream.
//
// Field population by kind:
//
//	EventTextDelta         Text
//	EventToolCallRequested Tool, CallID, Args
//	EventToolCallResult    Tool, CallID, Result or Failure
//	EventRunCompleted      Output or Failure, Usage
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Agent     string    `json:"agent"`
	Depth     int       `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Args      string    `json:"args,omitempty"`
	Result    any       `json:"result,omitempty"`
	Output    string    `json:"output,omitempty"`
	Failure   *Failure  `json:"failure,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
}

// NewID generates a unique identifier for events and runs.
func NewID() string { return uuid.NewString() }

func newEvent(kind EventKind, agent string, depth int) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Agent:     agent,
		Depth:     depth,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunStartedEvent opens the sequence of a run at the given depth.
func NewRunStartedEvent(agent string, depth int) Event {
	return newEvent(EventRunStarted, agent, depth)
}

// NewTextDeltaEvent carries an incremental text fragment.
func NewTextDeltaEvent(agent string, depth int, text string) Event {
	e := newEvent(EventTextDelta, agent, depth)
	e.Text = text
	return e
}

// NewToolCallRequestedEvent records a tool invocation request with its raw
// serialized arguments.
func NewToolCallRequestedEvent(agent string, depth int, callID, tool, args string) Event {
	e := newEvent(EventToolCallRequested, agent, depth)
	e.CallID = callID
	e.Tool = tool
	e.Args = args
	return e
}

// NewToolCallResultEvent records a tool invocation outcome. Exactly one of
// result / failure is meaningful.
func NewToolCallResultEvent(agent string, depth int, callID, tool string, result any, failure *Failure) Event {
	e := newEvent(EventToolCallResult, agent, depth)
	e.CallID = callID
	e.Tool = tool
	e.Result = result
	e.Failure = failure
	return e
}

// NewRunCompletedEvent terminates a run's sequence with its final output or
// failure and the usage totals observed at completion.
func NewRunCompletedEvent(agent string, depth int, output string, failure *Failure, usage Usage) Event {
	e := newEvent(EventRunCompleted, agent, depth)
	e.Output = output
	e.Failure = failure
	e.Usage = &usage
	return e
}

// IsTerminal reports whether the event closes its run's sequence.
func (e Event) IsTerminal() bool { return e.Kind == EventRunCompleted }

// Failed reports whether the event carries a failure payload.
func (e Event) Failed() bool { return e.Failure != nil }

// Package testutil provides in-memory fixtures shared by runtime tests: a
// drained event stream and run context builders.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/agentrelay/core"
)

// Stream collects every event emitted on its channel. It drains continuously
// in the background, mirroring how the runner keeps receiving until a run
// returns, so terminal events never block.
type Stream struct {
	Emit chan core.Event

	mu     sync.Mutex
	events []core.Event
	done   chan struct{}
}

// NewStream starts an actively drained event stream.
func NewStream() *Stream {
	s := &Stream{
		Emit: make(chan core.Event, 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.Emit {
			s.mu.Lock()
			s.events = append(s.events, ev)
			s.mu.Unlock()
		}
	}()
	return s
}

// Close stops draining. Call after the run under test has returned.
func (s *Stream) Close() {
	close(s.Emit)
	<-s.done
}

// Events returns the events collected so far, in emission order.
func (s *Stream) Events() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

// Kinds projects the collected events onto their kinds, in order.
func (s *Stream) Kinds() []core.EventKind {
	events := s.Events()
	kinds := make([]core.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// AtDepth returns the collected events emitted at the given depth.
func (s *Stream) AtDepth(depth int) []core.Event {
	var out []core.Event
	for _, ev := range s.Events() {
		if ev.Depth == depth {
			out = append(out, ev)
		}
	}
	return out
}

// OfKind returns the collected events of the given kind.
func (s *Stream) OfKind(kind core.EventKind) []core.Event {
	var out []core.Event
	for _, ev := range s.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// NewRunContext builds a top-level run context wired to a fresh drained
// stream. The caller closes the stream when done.
func NewRunContext(t *testing.T, ctx context.Context, agentName string, deps core.Deps, required []core.DepKey) (*core.RunContext, *Stream) {
	t.Helper()

	stream := NewStream()
	rc, err := core.NewRunContext(ctx, core.NewID(), core.AgentInfo{Name: agentName}, deps, required, core.NewUsageTracker(), 0, stream.Emit, nil)
	if err != nil {
		stream.Close()
		t.Fatalf("building run context: %v", err)
	}
	return rc, stream
}

// Package runner hosts agent runs: it creates the per-run context, owns the
// event stream consumers receive, and tracks active runs for cancellation.
package runner

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Options configure a Runner.
type Options struct {
	// Deps is the full dependency set available to runs. Each run scopes it
	// down to its agent's declared keys.
	Deps core.Deps
	// EventBuffer sizes the event channel handed to consumers. A consumer
	// lagging beyond the buffer backpressures the run rather than losing
	// events.
	EventBuffer int
	// Logger receives runtime diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Runner executes runs of a single top-level agent. It is safe for concurrent
// use; each Run call gets an independent context, usage tracker and stream.
type Runner struct {
	agent  *agent.Agent
	opts   Options
	logger logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a runner for the given agent.
func New(a *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Deps:        core.Deps{},
		EventBuffer: 100,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Runner{
		agent:  a,
		opts:   opts,
		logger: logger,
		active: make(map[string]context.CancelFunc),
	}
}

// Run starts a run for prompt and returns its ID, the ordered event stream
// and a one-shot error channel. The event channel is closed after the
// terminal RunCompleted event; the error channel then yields the run error,
// if any. Construction failures (missing dependencies) are returned directly
// and nothing is started.
//
// The returned stream carries the events of the whole delegation tree in
// emission order, each tagged with its depth. Consumers must drain it; a run
// blocks rather than drop events.
func (r *Runner) Run(ctx context.Context, prompt string) (string, <-chan core.Event, <-chan error, error) {
	runCtx, cancel := context.WithCancel(ctx)

	runID := core.NewID()
	emit := make(chan core.Event, r.opts.EventBuffer)

	rc, err := core.NewRunContext(
		runCtx,
		runID,
		core.AgentInfo{Name: r.agent.Name()},
		r.opts.Deps,
		r.agent.Requires(),
		core.NewUsageTracker(),
		0,
		emit,
		r.logger,
	)
	if err != nil {
		cancel()
		return "", nil, nil, err
	}

	r.mu.Lock()
	r.active[runID] = cancel
	r.mu.Unlock()

	events := make(chan core.Event, r.opts.EventBuffer)
	errCh := make(chan error, 1)

	// The forwarding goroutine ranges until emit closes, never aborting on
	// ctx.Done, so the terminal event of a cancelled run still reaches the
	// consumer.
	go func() {
		defer close(events)
		defer close(errCh)
		for ev := range emit {
			events <- ev
		}
	}()

	go func() {
		// Release before closing the stream so the run is inactive by the
		// time consumers observe the channel close.
		defer close(emit)
		defer r.release(runID)

		if _, err := r.agent.Run(rc, prompt); err != nil {
			errCh <- err
		}
	}()

	return runID, events, errCh, nil
}

// Cancel stops an active run. It reports whether the run ID was active; the
// run still emits its terminal RunCompleted event before its stream closes.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ActiveRuns returns the IDs of runs that have started and not yet finished.
func (r *Runner) ActiveRuns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) release(runID string) {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	delete(r.active, runID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

package core

import "sync"

// Usage accumulates model request and token counts. Values only grow; a
// snapshot taken later in a run is always >= an earlier one, field by field.
type Usage struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the field-wise sum of two usage values.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		Requests:         u.Requests + o.Requests,
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// UsageTracker is the mutable accumulator shared by reference across a whole
// delegation tree. Every model call in the tree, at any depth, records into
// the same tracker, so the top-level snapshot reflects total consumption.
type UsageTracker struct {
	mu     sync.Mutex
	totals Usage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{}
}

// Add atomically folds one model call's usage into the running totals.
func (t *UsageTracker) Add(u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = t.totals.Add(u)
}

// Snapshot returns a consistent copy of the current totals.
func (t *UsageTracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

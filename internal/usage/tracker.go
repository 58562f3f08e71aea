// Package usage provides token usage accounting: an in-process
// Tracker for live counters and an append-only SQLite store for
// historical records.
package usage

import "sync/atomic"

// Tracker accumulates request and token counters. The ingress layer
// creates one per request and passes it through the agent loop; a
// process-wide tracker aggregates across requests. All methods are
// safe for concurrent use.
type Tracker struct {
	requests     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

// NewTracker creates a zeroed tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// IncrementRequests counts one model invocation.
func (t *Tracker) IncrementRequests() {
	t.requests.Add(1)
}

// Add accumulates input and output token counts.
func (t *Tracker) Add(inputTokens, outputTokens int) {
	t.inputTokens.Add(int64(inputTokens))
	t.outputTokens.Add(int64(outputTokens))
}

// Stats is a point-in-time snapshot of tracker counters.
type Stats struct {
	TotalRequests     int64 `json:"total_requests"`
	TotalInputTokens  int64 `json:"total_input_tokens"`
	TotalOutputTokens int64 `json:"total_output_tokens"`
	TotalTokens       int64 `json:"total_tokens"`
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Stats {
	in := t.inputTokens.Load()
	out := t.outputTokens.Load()
	return Stats{
		TotalRequests:     t.requests.Load(),
		TotalInputTokens:  in,
		TotalOutputTokens: out,
		TotalTokens:       in + out,
	}
}

// Reset zeroes all counters.
func (t *Tracker) Reset() {
	t.requests.Store(0)
	t.inputTokens.Store(0)
	t.outputTokens.Store(0)
}

// Merge adds another tracker's counters into this one. Used to roll a
// per-request tracker into the process-wide aggregate.
func (t *Tracker) Merge(other *Tracker) {
	s := other.Snapshot()
	t.requests.Add(s.TotalRequests)
	t.inputTokens.Add(s.TotalInputTokens)
	t.outputTokens.Add(s.TotalOutputTokens)
}
